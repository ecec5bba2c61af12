package cave

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/types"
)

// Config is the per-process CAVE configuration.
type Config struct {
	// NumberOfDisplays is the number of physical screens in the installation.
	NumberOfDisplays int `json:"displays" yaml:"displays"`
	// EyeSeparation is the default interocular distance in world units.
	EyeSeparation float64 `json:"eye_separation" yaml:"eye_separation"`
	// EyePosition is the fixed head position the screens are viewed from.
	EyePosition types.Vec3 `json:"eye_position" yaml:"eye_position"`
	// PhysicalAspect is the screen width over height used to derive the
	// geometry of a single display configured without corners.
	PhysicalAspect float64 `json:"physical_aspect" yaml:"physical_aspect"`
}

// Adapter turns this rank's display geometry into an off-axis camera each
// frame. The first successful configuration is kept for the process
// lifetime; changing geometry needs a restart.
type Adapter struct {
	rank   int
	cfg    Config
	logger *log.Logger

	configured bool
	geometry   types.DisplayGeometry
	head       mgl64.Vec3
	warned     bool
	eyeBehind  bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates the adapter for the process with the given rank.
func NewAdapter(rank int, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{rank: rank, cfg: cfg, head: mgl64.Vec3(cfg.EyePosition)}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.OrNop(a.logger).Named("cave")
	return a
}

// Kind implements compositor.Synchronizer.
func (a *Adapter) Kind() compositor.Kind { return compositor.CaveAdapterOnly }

// LastRenderedTile implements compositor.Synchronizer. The adapter never
// composites, so it holds no tile.
func (a *Adapter) LastRenderedTile() types.RawImage { return types.InvalidImage() }

// Configured reports whether this rank has its geometry.
func (a *Adapter) Configured() bool { return a.configured }

// Geometry returns this rank's display geometry.
func (a *Adapter) Geometry() (types.DisplayGeometry, bool) {
	return a.geometry, a.configured
}

// Configure stores the geometry of rank's display. Only this process's own
// rank takes effect, and only the first time; it returns true when the
// geometry was applied.
func (a *Adapter) Configure(rank int, origin, edgeX, edgeY types.Vec3) bool {
	return a.configure(types.DisplayGeometry{
		Rank:          rank,
		Origin:        origin,
		EdgeX:         edgeX,
		EdgeY:         edgeY,
		EyeSeparation: a.cfg.EyeSeparation,
	})
}

// ConfigureDisplays applies a display list, typically from configuration.
// It reports whether this rank's geometry was applied.
func (a *Adapter) ConfigureDisplays(displays []types.DisplayGeometry) bool {
	applied := false
	for _, d := range displays {
		if d.EyeSeparation == 0 {
			d.EyeSeparation = a.cfg.EyeSeparation
		}
		if a.configure(d) {
			applied = true
		}
	}
	return applied
}

func (a *Adapter) configure(g types.DisplayGeometry) bool {
	if a.configured || g.Rank != a.rank {
		return false
	}
	if g.Degenerate() {
		a.logger.Warn("ignoring degenerate display geometry", map[string]any{"rank": g.Rank})
		return false
	}
	a.geometry = g
	a.configured = true
	a.logger.Info("display geometry configured", map[string]any{
		"origin": g.Origin,
		"edge_x": g.EdgeX,
		"edge_y": g.EdgeY,
	})
	return true
}

// deriveSingleDisplay builds a screen at unit distance in front of the
// camera that fills its view angle, for an installation with one display
// and no explicit corners.
func (a *Adapter) deriveSingleDisplay(cam *Camera) bool {
	if a.cfg.NumberOfDisplays != 1 || a.cfg.PhysicalAspect <= 0 || cam.ViewAngle <= 0 {
		return false
	}
	forward := cam.forward()
	up := cam.ViewUp.Sub(forward.Mul(cam.ViewUp.Dot(forward)))
	if up.Len() == 0 {
		return false
	}
	up = up.Normalize()
	right := forward.Cross(up)

	height := 2 * math.Tan(mgl64.DegToRad(cam.ViewAngle)/2)
	width := height * a.cfg.PhysicalAspect
	center := cam.Position.Add(forward)
	origin := center.Sub(right.Mul(width / 2)).Sub(up.Mul(height / 2))

	if !a.configure(types.DisplayGeometry{
		Rank:          a.rank,
		Origin:        types.Vec3(origin),
		EdgeX:         types.Vec3(right.Mul(width)),
		EdgeY:         types.Vec3(up.Mul(height)),
		EyeSeparation: a.cfg.EyeSeparation,
	}) {
		return false
	}
	a.head = cam.Position
	return true
}

// HandleStartRender prepares cam for this rank's screen. Call once per
// frame before the scene is traversed. bounds may be nil.
func (a *Adapter) HandleStartRender(cam *Camera, bounds *Bounds) {
	if !a.configured && !a.deriveSingleDisplay(cam) {
		if !a.warned {
			a.logger.Warn("no display geometry for this rank, rendering a plain perspective", map[string]any{
				"displays": a.cfg.NumberOfDisplays,
			})
			a.warned = true
		}
	}

	if a.configured {
		g := a.geometry
		pa := mgl64.Vec3(g.Origin)
		cam.setScreen(screen{
			pa: pa,
			pb: pa.Add(mgl64.Vec3(g.EdgeX)),
			pc: pa.Add(mgl64.Vec3(g.EdgeY)),
		}, a.head, g.EyeSeparation)
		if behind := cam.EyeBehindScreen(); behind != a.eyeBehind {
			a.eyeBehind = behind
			if behind {
				a.logger.Warn("eye on or behind the screen plane, rendering a plain perspective", map[string]any{
					"rank": a.rank,
					"eye":  cam.Eye().String(),
				})
			}
		}
	}

	if bounds != nil {
		cam.ResetClippingRange(*bounds)
	}
}

var _ compositor.Synchronizer = (*Adapter)(nil)
