package fluid

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingEffects struct {
	triggers int
	sounds   []string
	panicOn  string
}

func (r *recordingEffects) Trigger(effect string, _ mgl32.Vec3, _ mgl32.Vec4, _ int) {
	if effect == r.panicOn {
		panic("effect failed")
	}
	r.triggers++
}

func (r *recordingEffects) PlaySound(sound string, _ mgl32.Vec3) {
	r.sounds = append(r.sounds, sound)
}

func TestSoundLimiterPerName(t *testing.T) {
	l := NewSoundLimiter(time.Second)
	now := time.Unix(1000, 0)
	if !l.Allow("splash", now) {
		t.Fatalf("first sound should play")
	}
	if l.Allow("splash", now.Add(100*time.Millisecond)) {
		t.Errorf("retrigger inside interval should be blocked")
	}
	if !l.Allow("hiss", now.Add(100*time.Millisecond)) {
		t.Errorf("other sound names are independent")
	}
	if !l.Allow("splash", now.Add(1100*time.Millisecond)) {
		t.Errorf("sound should play again after the interval")
	}
}

func TestDispatcherThrottlesAndIsolatesFailures(t *testing.T) {
	fx := &recordingEffects{panicOn: "flame"}
	d := NewDispatcher(fx, NewSoundLimiter(time.Hour), nil)
	splashes := []Splash{
		{Effect: "splash", Sound: "water_splash", Particles: 3},
		{Effect: "splash", Sound: "water_splash", Particles: 2},
		{Effect: "flame", Sound: "lava_hiss", Particles: 1},
	}
	played := d.Dispatch(splashes)
	if fx.triggers != 2 {
		t.Errorf("triggers = %d, want 2", fx.triggers)
	}
	if played != 2 || len(fx.sounds) != 2 {
		t.Errorf("played %d sounds %v, want one per name", played, fx.sounds)
	}
}

func TestDispatcherLogsCollaboratorFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fx := &recordingEffects{panicOn: "flame"}
	d := NewDispatcher(fx, nil, zap.New(core))
	d.Dispatch([]Splash{{Effect: "flame", Sound: "lava_hiss"}})

	failures := logs.FilterMessage("effects collaborator failed").All()
	if len(failures) != 1 {
		t.Fatalf("%d failure entries, want 1", len(failures))
	}
	if call := failures[0].ContextMap()["call"]; call != "trigger" {
		t.Errorf("call field %v, want trigger", call)
	}
}
