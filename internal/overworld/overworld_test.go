package overworld

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFlatField(t *testing.T) {
	f := FlatField{BiomeID: BiomeDesert, Height: 0.3, Temperature: 0.9, WaterType: WaterVolcano}
	p := mgl32.Vec2{12, -40}
	if f.Biome(p) != BiomeDesert {
		t.Errorf("unexpected biome %v", f.Biome(p))
	}
	if f.Scalar(p, FieldHeight) != 0.3 || f.Scalar(p, FieldTemperature) != 0.9 {
		t.Errorf("unexpected scalars")
	}
	if f.Water(p) != WaterVolcano {
		t.Errorf("unexpected water %v", f.Water(p))
	}
}

func TestNoiseFieldDeterministicAndBounded(t *testing.T) {
	a := NewNoiseField(77, 0.2)
	b := NewNoiseField(77, 0.2)
	for x := -50; x < 50; x += 7 {
		for z := -50; z < 50; z += 5 {
			p := mgl32.Vec2{float32(x), float32(z)}
			if a.Biome(p) != b.Biome(p) || a.Water(p) != b.Water(p) {
				t.Fatalf("field not deterministic at %v", p)
			}
			for _, sf := range []ScalarField{FieldHeight, FieldTemperature, FieldRainfall} {
				v := a.Scalar(p, sf)
				if v < 0 || v > 1 {
					t.Fatalf("scalar %d out of range at %v: %f", sf, p, v)
				}
			}
		}
	}
}

func TestImageFieldResamples(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(0, 0, color.Gray{Y: 0})
	src.SetGray(1, 0, color.Gray{Y: 255})
	src.SetGray(0, 1, color.Gray{Y: 0})
	src.SetGray(1, 1, color.Gray{Y: 255})

	biomes := image.NewGray(image.Rect(0, 0, 1, 1))
	biomes.SetGray(0, 0, color.Gray{Y: uint8(BiomeForest)})
	water := image.NewGray(image.Rect(0, 0, 1, 1))
	water.SetGray(0, 0, color.Gray{Y: uint8(WaterVolcano)})

	f, err := NewImageField(8, 8, src, biomes, water)
	if err != nil {
		t.Fatalf("NewImageField: %v", err)
	}
	left := f.Scalar(mgl32.Vec2{0, 4}, FieldHeight)
	right := f.Scalar(mgl32.Vec2{7, 4}, FieldHeight)
	if left >= right {
		t.Errorf("expected height gradient left<right, got %f >= %f", left, right)
	}
	if f.Biome(mgl32.Vec2{3, 3}) != BiomeForest {
		t.Errorf("biome ids must not be blended")
	}
	if f.Water(mgl32.Vec2{100, -100}) != WaterVolcano {
		t.Errorf("out of range positions should clamp to the edge")
	}
}

func TestImageFieldRejectsEmpty(t *testing.T) {
	if _, err := NewImageField(4, 4, image.NewGray(image.Rect(0, 0, 0, 0)), nil, nil); err == nil {
		t.Errorf("expected error for empty image")
	}
}

func TestBiomeLibraryFallback(t *testing.T) {
	lib := DefaultBiomes()
	if lib.Get(BiomeID(99)) == nil {
		t.Fatalf("unknown biome should fall back")
	}
	if lib.Get(BiomeDesert).Name != "Desert" {
		t.Errorf("unexpected desert entry")
	}
}
