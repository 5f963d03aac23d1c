package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const voxelTypesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["voxel_types"],
  "properties": {
    "voxel_types": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "starting_health": {"type": "integer", "minimum": 0, "maximum": 255},
          "releases_resource": {"type": "boolean"},
          "resource": {"type": "string"},
          "probability_of_release": {"type": "number", "minimum": 0, "maximum": 1},
          "buildable": {"type": "boolean"},
          "can_ramp": {"type": "boolean"},
          "transparent": {"type": "boolean"},
          "invincible": {"type": "boolean"},
          "soil": {"type": "boolean"},
          "surface": {"type": "boolean"},
          "spawn_clusters": {"type": "boolean"},
          "spawn_veins": {"type": "boolean"},
          "min_spawn_height": {"type": "integer", "minimum": 0},
          "max_spawn_height": {"type": "integer", "minimum": 0},
          "rarity": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "spawn_probability": {"type": "number", "minimum": 0, "maximum": 1},
          "cluster_size": {"type": "number", "minimum": 0},
          "vein_length": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("voxel_types.schema.json", voxelTypesSchema)
	})
	return schema, schemaErr
}

type typeFile struct {
	VoxelTypes []typeDef `yaml:"voxel_types"`
}

type typeDef struct {
	Name                 string  `yaml:"name"`
	StartingHealth       uint8   `yaml:"starting_health"`
	ReleasesResource     bool    `yaml:"releases_resource"`
	Resource             string  `yaml:"resource"`
	ProbabilityOfRelease float64 `yaml:"probability_of_release"`
	Buildable            bool    `yaml:"buildable"`
	CanRamp              bool    `yaml:"can_ramp"`
	Transparent          bool    `yaml:"transparent"`
	Invincible           bool    `yaml:"invincible"`
	Soil                 bool    `yaml:"soil"`
	Surface              bool    `yaml:"surface"`
	SpawnClusters        bool    `yaml:"spawn_clusters"`
	SpawnVeins           bool    `yaml:"spawn_veins"`
	MinSpawnHeight       int     `yaml:"min_spawn_height"`
	MaxSpawnHeight       int     `yaml:"max_spawn_height"`
	Rarity               float64 `yaml:"rarity"`
	SpawnProbability     float64 `yaml:"spawn_probability"`
	ClusterSize          float64 `yaml:"cluster_size"`
	VeinLength           int     `yaml:"vein_length"`
}

func (d typeDef) voxelType() VoxelType {
	return VoxelType{
		Name:                 d.Name,
		StartingHealth:       d.StartingHealth,
		ReleasesResource:     d.ReleasesResource,
		Resource:             d.Resource,
		ProbabilityOfRelease: d.ProbabilityOfRelease,
		IsBuildable:          d.Buildable,
		CanRamp:              d.CanRamp,
		IsTransparent:        d.Transparent,
		IsInvincible:         d.Invincible,
		IsSoil:               d.Soil,
		IsSurface:            d.Surface,
		SpawnClusters:        d.SpawnClusters,
		SpawnVeins:           d.SpawnVeins,
		MinSpawnHeight:       d.MinSpawnHeight,
		MaxSpawnHeight:       d.MaxSpawnHeight,
		Rarity:               d.Rarity,
		SpawnProbability:     d.SpawnProbability,
		ClusterSize:          d.ClusterSize,
		VeinLength:           d.VeinLength,
	}
}

// LoadLibrary reads a YAML voxel type table, validates it against the
// embedded schema and registers the types in file order after air.
func LoadLibrary(r io.Reader) (*Library, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read voxel types: %w", err)
	}

	// The validator works on JSON values, so the YAML document is
	// normalised through encoding/json first.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("voxel types yaml: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("voxel types: %w", err)
	}
	var generic any
	if err := json.Unmarshal(js, &generic); err != nil {
		return nil, fmt.Errorf("voxel types: %w", err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("voxel types schema: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, fmt.Errorf("voxel types invalid: %w", err)
	}

	var file typeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("voxel types yaml: %w", err)
	}
	lib := NewLibrary()
	for _, def := range file.VoxelTypes {
		if _, err := lib.Register(def.voxelType()); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// LoadLibraryFile is LoadLibrary for a path on disk.
func LoadLibraryFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open voxel types: %w", err)
	}
	defer f.Close()
	return LoadLibrary(f)
}
