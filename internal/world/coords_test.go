package world

import "testing"

func TestCoordinateRoundTrip(t *testing.T) {
	for x := int32(-70); x <= 70; x += 3 {
		for y := int32(-130); y <= 130; y += 7 {
			for z := int32(-70); z <= 70; z += 5 {
				g := GlobalVoxelCoordinate{x, y, z}
				c := ChunkOf(g)
				l := LocalOf(g)
				if !l.InBounds() {
					t.Fatalf("local %v of %v out of bounds", l, g)
				}
				if back := GlobalFrom(c, l); back != g {
					t.Fatalf("round trip %v -> %v,%v -> %v", g, c, l, back)
				}
			}
		}
	}
}

func TestChunkOfFloorsNegatives(t *testing.T) {
	cases := []struct {
		g    GlobalVoxelCoordinate
		want GlobalChunkCoordinate
	}{
		{GlobalVoxelCoordinate{0, 0, 0}, GlobalChunkCoordinate{0, 0, 0}},
		{GlobalVoxelCoordinate{15, 63, 15}, GlobalChunkCoordinate{0, 0, 0}},
		{GlobalVoxelCoordinate{16, 64, 16}, GlobalChunkCoordinate{1, 1, 1}},
		{GlobalVoxelCoordinate{-1, -1, -1}, GlobalChunkCoordinate{-1, -1, -1}},
		{GlobalVoxelCoordinate{-16, -64, -16}, GlobalChunkCoordinate{-1, -1, -1}},
		{GlobalVoxelCoordinate{-17, -65, -17}, GlobalChunkCoordinate{-2, -2, -2}},
	}
	for _, tc := range cases {
		if got := ChunkOf(tc.g); got != tc.want {
			t.Errorf("ChunkOf(%v) = %v, want %v", tc.g, got, tc.want)
		}
	}
	if l := LocalOf(GlobalVoxelCoordinate{-1, -1, -1}); l != (LocalVoxelCoordinate{15, 63, 15}) {
		t.Errorf("LocalOf(-1,-1,-1) = %v", l)
	}
}

func TestIndexBijection(t *testing.T) {
	seen := make([]bool, ChunkVolume)
	for y := int32(0); y < ChunkSizeY; y++ {
		for z := int32(0); z < ChunkSizeZ; z++ {
			for x := int32(0); x < ChunkSizeX; x++ {
				l := LocalVoxelCoordinate{x, y, z}
				i := l.Index()
				if i < 0 || i >= ChunkVolume {
					t.Fatalf("index %d of %v out of range", i, l)
				}
				if seen[i] {
					t.Fatalf("index %d produced twice", i)
				}
				seen[i] = true
				if back := CoordsAt(i); back != l {
					t.Fatalf("CoordsAt(%d) = %v, want %v", i, back, l)
				}
			}
		}
	}
}

func TestIndexIsYMajor(t *testing.T) {
	if got := (LocalVoxelCoordinate{X: 1}).Index(); got != 1 {
		t.Errorf("x stride = %d", got)
	}
	if got := (LocalVoxelCoordinate{Z: 1}).Index(); got != ChunkSizeX {
		t.Errorf("z stride = %d", got)
	}
	if got := (LocalVoxelCoordinate{Y: 1}).Index(); got != SliceVolume {
		t.Errorf("y stride = %d", got)
	}
}

func TestChunkKeyDistinct(t *testing.T) {
	keys := make(map[uint64]GlobalChunkCoordinate)
	for x := int32(-8); x <= 8; x++ {
		for y := int32(-4); y <= 4; y++ {
			for z := int32(-8); z <= 8; z++ {
				c := GlobalChunkCoordinate{x, y, z}
				k := c.Key()
				if other, ok := keys[k]; ok {
					t.Fatalf("key collision between %v and %v", c, other)
				}
				keys[k] = c
			}
		}
	}
}
