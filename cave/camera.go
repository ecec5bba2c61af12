// Package cave drives immersive multi-screen displays: every rank renders
// its own physical screen through an off-axis projection and nothing is
// composited.
package cave

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Eye selects the stereo eye a camera renders for.
type Eye int

const (
	EyeMono Eye = iota
	EyeLeft
	EyeRight
)

func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return "mono"
	}
}

// minScreenDistance is the closest an eye may be to its screen plane for
// an off-axis frustum.
const minScreenDistance = 1e-6

// Default clipping range before any scene bounds are known.
const (
	DefaultNear = 0.01
	DefaultFar  = 1000.0
)

// Bounds is an axis-aligned scene bounding box.
type Bounds struct {
	Min, Max mgl64.Vec3
}

// Empty reports whether the box contains nothing.
func (b Bounds) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b Bounds) corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	for i := range out {
		for axis := range 3 {
			if i&(1<<axis) == 0 {
				out[i][axis] = b.Min[axis]
			} else {
				out[i][axis] = b.Max[axis]
			}
		}
	}
	return out
}

// screen is an off-axis projection plane: pa lower-left, pb lower-right,
// pc upper-left.
type screen struct {
	pa, pb, pc mgl64.Vec3
}

func (s screen) basis() (vr, vu, vn mgl64.Vec3) {
	vr = s.pb.Sub(s.pa).Normalize()
	vu = s.pc.Sub(s.pa).Normalize()
	vn = vr.Cross(vu).Normalize()
	return vr, vu, vn
}

// Camera is the render camera seen by one rank. Without a screen it is an
// ordinary symmetric perspective camera.
type Camera struct {
	Position   mgl64.Vec3
	FocalPoint mgl64.Vec3
	ViewUp     mgl64.Vec3
	// ViewAngle is the vertical field of view in degrees.
	ViewAngle float64
	// Aspect is width over height of the viewport.
	Aspect float64

	near, far float64
	eye       Eye

	offAxis       bool
	screen        screen
	head          mgl64.Vec3
	eyeSeparation float64
}

// NewCamera creates a camera at the origin looking down -Z.
func NewCamera() *Camera {
	return &Camera{
		FocalPoint: mgl64.Vec3{0, 0, -1},
		ViewUp:     mgl64.Vec3{0, 1, 0},
		ViewAngle:  30,
		Aspect:     1,
		near:       DefaultNear,
		far:        DefaultFar,
	}
}

// SetEye selects the stereo eye.
func (c *Camera) SetEye(e Eye) { c.eye = e }

// Eye returns the stereo eye.
func (c *Camera) Eye() Eye { return c.eye }

// ClippingRange returns the near and far planes.
func (c *Camera) ClippingRange() (near, far float64) { return c.near, c.far }

// OffAxis reports whether a screen projection is applied.
func (c *Camera) OffAxis() bool { return c.offAxis }

// setScreen installs an off-axis screen seen from head.
func (c *Camera) setScreen(s screen, head mgl64.Vec3, eyeSeparation float64) {
	c.offAxis = true
	c.screen = s
	c.head = head
	c.eyeSeparation = eyeSeparation
}

// EyePosition returns the world position of the current eye.
func (c *Camera) EyePosition() mgl64.Vec3 {
	if !c.offAxis {
		return c.Position
	}
	vr, _, _ := c.screen.basis()
	half := vr.Mul(c.eyeSeparation / 2)
	switch c.eye {
	case EyeLeft:
		return c.head.Sub(half)
	case EyeRight:
		return c.head.Add(half)
	default:
		return c.head
	}
}

// forward is the unit view direction.
func (c *Camera) forward() mgl64.Vec3 {
	if c.offAxis {
		_, _, vn := c.screen.basis()
		return vn.Mul(-1)
	}
	f := c.FocalPoint.Sub(c.Position)
	if f.Len() == 0 {
		return mgl64.Vec3{0, 0, -1}
	}
	return f.Normalize()
}

// View returns the world-to-eye matrix.
func (c *Camera) View() mgl64.Mat4 {
	if !c.offAxis {
		return mgl64.LookAtV(c.Position, c.FocalPoint, c.ViewUp)
	}
	_, vu, vn := c.screen.basis()
	pe := c.EyePosition()
	return mgl64.LookAtV(pe, pe.Sub(vn), vu)
}

// Projection returns the eye-to-clip matrix. Off-axis cameras use the
// generalized perspective projection of their screen, unless the eye sits
// on or behind the screen plane, where the symmetric perspective is used.
func (c *Camera) Projection() mgl64.Mat4 {
	if !c.offAxis {
		return c.symmetric()
	}
	d := c.screenDistance()
	if d < minScreenDistance {
		return c.symmetric()
	}
	vr, vu, _ := c.screen.basis()
	pe := c.EyePosition()
	va, vb, vc := c.screen.pa.Sub(pe), c.screen.pb.Sub(pe), c.screen.pc.Sub(pe)
	scale := c.near / d
	return mgl64.Frustum(
		vr.Dot(va)*scale, vr.Dot(vb)*scale,
		vu.Dot(va)*scale, vu.Dot(vc)*scale,
		c.near, c.far,
	)
}

func (c *Camera) symmetric() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.ViewAngle), c.Aspect, c.near, c.far)
}

// screenDistance is the distance from the eye to the screen plane,
// negative behind it.
func (c *Camera) screenDistance() float64 {
	_, _, vn := c.screen.basis()
	return -vn.Dot(c.screen.pa.Sub(c.EyePosition()))
}

// EyeBehindScreen reports whether an off-axis camera's eye is too close to,
// or behind, its screen plane for an off-axis frustum.
func (c *Camera) EyeBehindScreen() bool {
	return c.offAxis && c.screenDistance() < minScreenDistance
}

// ResetClippingRange fits the near and far planes around bounds along the
// view direction. Empty bounds restore the defaults.
func (c *Camera) ResetClippingRange(b Bounds) {
	if b.Empty() {
		c.near, c.far = DefaultNear, DefaultFar
		return
	}
	pe, f := c.EyePosition(), c.forward()
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range b.corners() {
		d := p.Sub(pe).Dot(f)
		lo, hi = min(lo, d), max(hi, d)
	}
	if hi <= 0 {
		c.near, c.far = DefaultNear, DefaultFar
		return
	}
	c.far = hi * 1.01
	c.near = max(lo*0.99, c.far*0.001)
}
