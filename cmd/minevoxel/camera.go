package main

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	cameraSpeed   = 5
	fieldOfView   = 90
	nearPlane     = 0.1
	farPlane      = 100
	modelSpinRate = -45
)

// vulkanClip converts OpenGL clip space to Vulkan's: Y points down and depth
// runs from 0 to 1.
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// camera is a free-flying camera moved along the world X and Z axes with
// WASD.
type camera struct {
	position mgl32.Vec3
	front    mgl32.Vec3
	up       mgl32.Vec3
}

func newCamera() camera {
	return camera{
		position: mgl32.Vec3{0, 0, 3},
		front:    mgl32.Vec3{0, 0, -1},
		up:       mgl32.Vec3{0, 1, 0},
	}
}

func (c *camera) update(dt float32, pressed func(sdl.Scancode) bool) {
	step := cameraSpeed * dt
	if pressed(sdl.SCANCODE_W) {
		c.position[2] -= step
	}
	if pressed(sdl.SCANCODE_S) {
		c.position[2] += step
	}
	if pressed(sdl.SCANCODE_A) {
		c.position[0] -= step
	}
	if pressed(sdl.SCANCODE_D) {
		c.position[0] += step
	}
}

func (c camera) view() mgl32.Mat4 {
	return mgl32.LookAtV(c.position, c.position.Add(c.front), c.up)
}

func projection(aspect float32) mgl32.Mat4 {
	return vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(fieldOfView), aspect, nearPlane, farPlane))
}

// spin rotates the model about Y by its fixed rate over dt seconds.
func spin(model mgl32.Mat4, dt float32) mgl32.Mat4 {
	return model.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(modelSpinRate * dt)))
}
