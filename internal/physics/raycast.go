// Package physics answers spatial queries against the voxel grid.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-colony/internal/profiling"
	"voxel-colony/internal/world"
)

// Hit is the first solid voxel met by a ray.
type Hit struct {
	Voxel world.VoxelHandle
	// Adjacent is the voxel the ray crossed just before Voxel, the one a
	// placed voxel would go into.
	Adjacent world.GlobalVoxelCoordinate
	Distance float32
}

// Raycast walks the voxels pierced by the ray from origin along dir, in
// order, and returns the first solid one whose entry distance lies within
// [minDist, maxDist]. Voxel v spans [v, v+1) on every axis. Unloaded voxels
// count as empty.
func Raycast(w *world.World, origin, dir mgl32.Vec3, minDist, maxDist float32) (Hit, bool) {
	defer profiling.Track("physics.Raycast")()
	if dir.Len() == 0 {
		return Hit{}, false
	}
	dir = dir.Normalize()

	start := world.FromVec3(origin)
	cur := [3]int32{start.X, start.Y, start.Z}
	var step [3]int32
	var tMax, tDelta [3]float32
	for i := range 3 {
		switch {
		case dir[i] > 0:
			step[i] = 1
			tMax[i] = (float32(cur[i]+1) - origin[i]) / dir[i]
			tDelta[i] = 1 / dir[i]
		case dir[i] < 0:
			step[i] = -1
			tMax[i] = (float32(cur[i]) - origin[i]) / dir[i]
			tDelta[i] = -1 / dir[i]
		default:
			tMax[i] = math.MaxFloat32
			tDelta[i] = math.MaxFloat32
		}
	}

	prev := start
	var t float32
	for t <= maxDist {
		g := world.GlobalVoxelCoordinate{X: cur[0], Y: cur[1], Z: cur[2]}
		if t >= minDist {
			if h := w.Handle(g); h.IsValid() && !h.IsEmpty() {
				return Hit{Voxel: h, Adjacent: prev, Distance: t}, true
			}
		}
		prev = g
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		cur[axis] += step[axis]
		tMax[axis] += tDelta[axis]
	}
	return Hit{}, false
}

// GroundLevel returns the topmost solid voxel of the column at (x, z)
// within the loaded chunks.
func GroundLevel(w *world.World, x, z int32) (world.VoxelHandle, bool) {
	loaded := w.Chunks().LoadedBounds()
	top := world.GlobalFrom(loaded.Max, world.LocalVoxelCoordinate{Y: world.MaskY}).Y
	bottom := loaded.Min.Origin().Y
	for y := top; y >= bottom; y-- {
		h := w.Handle(world.GlobalVoxelCoordinate{X: x, Y: y, Z: z})
		if h.IsValid() && !h.IsEmpty() {
			return h, true
		}
	}
	return world.VoxelHandle{}, false
}
