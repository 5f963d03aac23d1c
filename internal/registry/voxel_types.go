package registry

import (
	"errors"
	"fmt"
	"math"
)

// EmptyID is reserved for air. Every library starts with it.
const EmptyID uint8 = 0

// Built-in type names referenced by the generator and the fluid simulator.
const (
	EmptyName   = "_empty"
	BedrockName = "Bedrock"
	StoneName   = "Stone"
	DirtName    = "Dirt"
	GrassName   = "Grass"
	SandName    = "Sand"
	ClayName    = "Clay"
	ScrubName   = "Scrub"
	CoalName    = "Coal"
	IronName    = "Iron"
	GoldName    = "Gold"
	ManaName    = "Mana"
	GemName     = "Gem"
)

var (
	ErrUnknownType   = errors.New("unknown voxel type")
	ErrDuplicateType = errors.New("duplicate voxel type")
	ErrLibraryFull   = errors.New("voxel type library full")
)

// VoxelType describes one immutable kind of terrain. Behaviour is expressed
// through flags; code branches on them instead of dispatching on the type.
type VoxelType struct {
	ID   uint8
	Name string

	StartingHealth       uint8
	ReleasesResource     bool
	Resource             string
	ProbabilityOfRelease float64

	IsBuildable   bool
	CanRamp       bool
	IsTransparent bool
	IsInvincible  bool
	IsSoil        bool
	IsSurface     bool

	// Ore spawning.
	SpawnClusters    bool
	SpawnVeins       bool
	MinSpawnHeight   int
	MaxSpawnHeight   int
	Rarity           float64
	SpawnProbability float64
	ClusterSize      float64
	VeinLength       int
}

// IsEmpty reports whether this is the reserved air type.
func (t *VoxelType) IsEmpty() bool { return t == nil || t.ID == EmptyID }

// IsOpaque reports whether the type blocks sunlight.
func (t *VoxelType) IsOpaque() bool { return !t.IsEmpty() && !t.IsTransparent }

// SpawnsOre reports whether world-scale ore seeding should place this type.
func (t *VoxelType) SpawnsOre() bool { return t.SpawnClusters || t.SpawnVeins }

// Library is the process-wide table of voxel types. It is populated once at
// startup and must be treated as read-only afterwards.
type Library struct {
	types  []*VoxelType
	byName map[string]*VoxelType
}

// NewLibrary returns a library holding only the empty type.
func NewLibrary() *Library {
	l := &Library{byName: make(map[string]*VoxelType)}
	empty := &VoxelType{ID: EmptyID, Name: EmptyName, IsTransparent: true}
	l.types = append(l.types, empty)
	l.byName[empty.Name] = empty
	return l
}

// Register adds a type and assigns it the next free id.
func (l *Library) Register(def VoxelType) (*VoxelType, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("register voxel type: empty name")
	}
	if _, ok := l.byName[def.Name]; ok {
		return nil, fmt.Errorf("register %q: %w", def.Name, ErrDuplicateType)
	}
	if len(l.types) > math.MaxUint8 {
		return nil, fmt.Errorf("register %q: %w", def.Name, ErrLibraryFull)
	}
	t := def
	t.ID = uint8(len(l.types))
	if t.StartingHealth == 0 {
		t.StartingHealth = 1
	}
	if t.MaxSpawnHeight < t.MinSpawnHeight {
		t.MaxSpawnHeight = t.MinSpawnHeight
	}
	l.types = append(l.types, &t)
	l.byName[t.Name] = &t
	return &t, nil
}

// Get returns the type with the given id. Unknown ids resolve to the empty type.
func (l *Library) Get(id uint8) *VoxelType {
	if int(id) < len(l.types) {
		return l.types[id]
	}
	return l.types[EmptyID]
}

// Lookup finds a type by name.
func (l *Library) Lookup(name string) (*VoxelType, bool) {
	t, ok := l.byName[name]
	return t, ok
}

// MustLookup is Lookup for tables built at startup.
func (l *Library) MustLookup(name string) *VoxelType {
	t, ok := l.byName[name]
	if !ok {
		panic(fmt.Sprintf("voxel type %q: %v", name, ErrUnknownType))
	}
	return t
}

// Empty returns the reserved air type.
func (l *Library) Empty() *VoxelType { return l.types[EmptyID] }

// Len returns the number of registered types including air.
func (l *Library) Len() int { return len(l.types) }

// Types returns all types ordered by id.
func (l *Library) Types() []*VoxelType {
	out := make([]*VoxelType, len(l.types))
	copy(out, l.types)
	return out
}

// OreTypes returns the types that take part in ore seeding.
func (l *Library) OreTypes() []*VoxelType {
	var out []*VoxelType
	for _, t := range l.types {
		if t.SpawnsOre() {
			out = append(out, t)
		}
	}
	return out
}

// Default builds the standard terrain table.
func Default() *Library {
	l := NewLibrary()
	for _, def := range defaultTypes() {
		if _, err := l.Register(def); err != nil {
			panic(err)
		}
	}
	return l
}

func defaultTypes() []VoxelType {
	return []VoxelType{
		{
			Name:           BedrockName,
			StartingHealth: 255,
			IsInvincible:   true,
		},
		{
			Name:                 StoneName,
			StartingHealth:       30,
			ReleasesResource:     true,
			Resource:             "Stone",
			ProbabilityOfRelease: 0.5,
			IsBuildable:          true,
		},
		{
			Name:                 DirtName,
			StartingHealth:       10,
			ReleasesResource:     true,
			Resource:             "Dirt",
			ProbabilityOfRelease: 0.3,
			IsBuildable:          true,
			CanRamp:              true,
			IsSoil:               true,
		},
		{
			Name:           GrassName,
			StartingHealth: 10,
			CanRamp:        true,
			IsSoil:         true,
			IsSurface:      true,
		},
		{
			Name:                 SandName,
			StartingHealth:       5,
			ReleasesResource:     true,
			Resource:             "Sand",
			ProbabilityOfRelease: 0.5,
			CanRamp:              true,
			IsSoil:               true,
			IsSurface:            true,
		},
		{
			Name:                 ClayName,
			StartingHealth:       15,
			ReleasesResource:     true,
			Resource:             "Clay",
			ProbabilityOfRelease: 0.5,
			CanRamp:              true,
		},
		{
			Name:           ScrubName,
			StartingHealth: 8,
			CanRamp:        true,
			IsSoil:         true,
			IsSurface:      true,
		},
		{
			Name:                 CoalName,
			StartingHealth:       40,
			ReleasesResource:     true,
			Resource:             "Coal",
			ProbabilityOfRelease: 1,
			SpawnVeins:           true,
			MinSpawnHeight:       4,
			MaxSpawnHeight:       40,
			Rarity:               0.2,
			SpawnProbability:     0.9,
			VeinLength:           24,
		},
		{
			Name:                 IronName,
			StartingHealth:       50,
			ReleasesResource:     true,
			Resource:             "Iron",
			ProbabilityOfRelease: 1,
			SpawnVeins:           true,
			MinSpawnHeight:       2,
			MaxSpawnHeight:       30,
			Rarity:               0.4,
			SpawnProbability:     0.8,
			VeinLength:           16,
		},
		{
			Name:                 GoldName,
			StartingHealth:       50,
			ReleasesResource:     true,
			Resource:             "Gold",
			ProbabilityOfRelease: 1,
			SpawnClusters:        true,
			MinSpawnHeight:       2,
			MaxSpawnHeight:       20,
			Rarity:               0.7,
			SpawnProbability:     0.6,
			ClusterSize:          3,
		},
		{
			Name:                 ManaName,
			StartingHealth:       60,
			ReleasesResource:     true,
			Resource:             "Mana",
			ProbabilityOfRelease: 1,
			SpawnClusters:        true,
			MinSpawnHeight:       2,
			MaxSpawnHeight:       14,
			Rarity:               0.85,
			SpawnProbability:     0.5,
			ClusterSize:          2.5,
		},
		{
			Name:                 GemName,
			StartingHealth:       80,
			ReleasesResource:     true,
			Resource:             "Gem",
			ProbabilityOfRelease: 1,
			IsTransparent:        true,
			SpawnClusters:        true,
			MinSpawnHeight:       1,
			MaxSpawnHeight:       10,
			Rarity:               0.9,
			SpawnProbability:     0.4,
			ClusterSize:          1.5,
		},
	}
}
