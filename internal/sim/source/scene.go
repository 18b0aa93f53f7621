package source

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
)

// SceneConfig drives the synthetic destruction scene.
type SceneConfig struct {
	FrameHz        float64
	EventsPerFrame int
	// Extent is the half size of the cube events are placed in.
	Extent float32
	Seed   int64
	// Proxies is the number of scene bodies events are attributed to; 0
	// leaves every event without a proxy.
	Proxies   int32
	Materials []string
}

// Scene generates deterministic frames of collisions, breakings and
// trailings scattered through a cube. It is not goroutine-safe; wrap Next in a
// Feed to share it.
type Scene struct {
	cfg   SceneConfig
	rng   *rand.Rand
	index uint64
}

func NewScene(cfg SceneConfig) *Scene {
	if cfg.FrameHz <= 0 {
		cfg.FrameHz = 30
	}
	if cfg.Extent <= 0 {
		cfg.Extent = 80
	}
	if cfg.EventsPerFrame < 0 {
		cfg.EventsPerFrame = 0
	}
	return &Scene{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Next always produces a frame; the first one is stamped 1/FrameHz.
func (s *Scene) Next() (Frame, bool) {
	s.index++
	f := Frame{
		Index:      s.index - 1,
		SolverTime: float64(s.index) / s.cfg.FrameHz,
		Enabled:    AllKinds,
	}
	n := s.cfg.EventsPerFrame
	if n == 0 {
		return f, true
	}
	f.Collisions = make([]event.RawCollision, 0, n)
	for i := 0; i < n; i++ {
		m1 := 1 + s.rng.Float32()*99
		m2 := 1 + s.rng.Float32()*99
		v1 := s.vec(20)
		f.Collisions = append(f.Collisions, event.RawCollision{
			Location:           s.vec(s.cfg.Extent),
			AccumulatedImpulse: v1.Mul(m1 * s.rng.Float32()),
			Normal:             s.unit(),
			Velocity1:          v1,
			Velocity2:          s.vec(5),
			AngularVelocity1:   s.vec(3),
			AngularVelocity2:   s.vec(3),
			Mass1:              m1,
			Mass2:              m2,
			Proxy:              s.proxy(),
		})
	}
	// Breakings and trailings are rarer than contacts.
	for i := 0; i < n/4; i++ {
		f.Breakings = append(f.Breakings, s.body())
	}
	for i := 0; i < n/2; i++ {
		f.Trailings = append(f.Trailings, s.body())
	}
	return f, true
}

func (s *Scene) body() event.RawBody {
	b := event.RawBody{
		Location:        s.vec(s.cfg.Extent),
		Velocity:        s.vec(15),
		AngularVelocity: s.vec(4),
		Mass:            1 + s.rng.Float32()*49,
		Proxy:           s.proxy(),
	}
	if len(s.cfg.Materials) > 0 {
		b.PhysicalMaterialName = s.cfg.Materials[s.rng.Intn(len(s.cfg.Materials))]
	}
	return b
}

func (s *Scene) proxy() int32 {
	if s.cfg.Proxies <= 0 {
		return event.NoProxy
	}
	return s.rng.Int31n(s.cfg.Proxies)
}

func (s *Scene) vec(half float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(s.rng.Float32()*2 - 1) * half,
		(s.rng.Float32()*2 - 1) * half,
		(s.rng.Float32()*2 - 1) * half,
	}
}

func (s *Scene) unit() mgl32.Vec3 {
	for {
		v := s.vec(1)
		if l := v.Len(); l > 1e-3 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}
