package overworld

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

var ErrEmptyImage = errors.New("overworld image is empty")

// ImageField samples an overworld painted as images. Height is a grayscale
// image resampled bilinearly to the map resolution. Biomes and water
// features are palette indices stored in gray values and resampled with
// nearest neighbour so ids are never blended.
type ImageField struct {
	width, height int
	heights       *image.Gray
	biomes        *image.Gray
	water         *image.Gray
}

// NewImageField resamples the given layers to width x height map cells.
// biomes and water may be nil.
func NewImageField(width, height int, heights, biomes, water image.Image) (*ImageField, error) {
	if heights == nil || heights.Bounds().Empty() || width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	dst := image.Rect(0, 0, width, height)
	f := &ImageField{width: width, height: height}

	f.heights = image.NewGray(dst)
	draw.BiLinear.Scale(f.heights, dst, heights, heights.Bounds(), draw.Src, nil)

	if biomes != nil {
		f.biomes = image.NewGray(dst)
		draw.NearestNeighbor.Scale(f.biomes, dst, biomes, biomes.Bounds(), draw.Src, nil)
	}
	if water != nil {
		f.water = image.NewGray(dst)
		draw.NearestNeighbor.Scale(f.water, dst, water, water.Bounds(), draw.Src, nil)
	}
	return f, nil
}

// Size returns the map resolution.
func (f *ImageField) Size() (int, int) { return f.width, f.height }

func (f *ImageField) cell(pos mgl32.Vec2) (int, int) {
	x := int(pos.X())
	y := int(pos.Y())
	return min(max(x, 0), f.width-1), min(max(y, 0), f.height-1)
}

func (f *ImageField) Biome(pos mgl32.Vec2) BiomeID {
	if f.biomes == nil {
		return BiomeGrassland
	}
	x, y := f.cell(pos)
	return BiomeID(f.biomes.GrayAt(x, y).Y)
}

// Scalar only stores height; temperature and rainfall read as mid values.
func (f *ImageField) Scalar(pos mgl32.Vec2, field ScalarField) float32 {
	if field != FieldHeight {
		return 0.5
	}
	x, y := f.cell(pos)
	return float32(f.heights.GrayAt(x, y).Y) / 255
}

func (f *ImageField) Water(pos mgl32.Vec2) WaterType {
	if f.water == nil {
		return WaterNone
	}
	x, y := f.cell(pos)
	w := WaterType(f.water.GrayAt(x, y).Y)
	if w > WaterVolcano {
		return WaterNone
	}
	return w
}
