package fluid

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Effects is the particle and sound collaborator.
type Effects interface {
	Trigger(effect string, pos mgl32.Vec3, tint mgl32.Vec4, count int)
	PlaySound(sound string, pos mgl32.Vec3)
}

// SoundLimiter throttles each sound name independently so one sound can
// retrigger at most once per interval.
type SoundLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func NewSoundLimiter(interval time.Duration) *SoundLimiter {
	return &SoundLimiter{interval: interval, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether sound may play at now.
func (l *SoundLimiter) Allow(sound string, now time.Time) bool {
	if l.interval <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[sound]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[sound] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// Dispatcher forwards splashes to the effects collaborator. Failures in the
// collaborator are logged and never reach the simulation.
type Dispatcher struct {
	effects Effects
	limiter *SoundLimiter
	log     *zap.Logger
	now     func() time.Time
}

func NewDispatcher(effects Effects, limiter *SoundLimiter, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{effects: effects, limiter: limiter, log: log, now: time.Now}
}

// Dispatch triggers every splash and plays the sounds the limiter lets
// through. It returns the number of sounds played.
func (d *Dispatcher) Dispatch(splashes []Splash) int {
	played := 0
	for _, sp := range splashes {
		d.safely("trigger", func() { d.effects.Trigger(sp.Effect, sp.Pos, sp.Tint, sp.Particles) })
		if sp.Sound == "" || (d.limiter != nil && !d.limiter.Allow(sp.Sound, d.now())) {
			continue
		}
		if d.safely("sound", func() { d.effects.PlaySound(sp.Sound, sp.Pos) }) {
			played++
		}
	}
	return played
}

func (d *Dispatcher) safely(what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("effects collaborator failed", zap.String("call", what), zap.Any("panic", r))
			ok = false
		}
	}()
	fn()
	return true
}
