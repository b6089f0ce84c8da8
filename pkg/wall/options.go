package wall

import (
	"runtime"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/kernel/earcut"
	"github.com/chazu/wallforge/pkg/texture"
)

type config struct {
	triangulator kernel.Triangulator
	loader       *texture.Loader
	bevel        BevelProfile
	workers      int
}

func defaultConfig() config {
	return config{
		triangulator: earcut.New(),
		bevel:        DefaultBevel(),
		workers:      runtime.GOMAXPROCS(0),
	}
}

// Option configures Build and BuildPlan.
type Option func(*config)

// WithTriangulator replaces the polygon-with-holes triangulator.
func WithTriangulator(t kernel.Triangulator) Option {
	return func(c *config) {
		if t != nil {
			c.triangulator = t
		}
	}
}

// WithLoader makes textured materials request their images from l. Without
// a loader, materials carry texture descriptors but no image handles.
func WithLoader(l *texture.Loader) Option {
	return func(c *config) {
		c.loader = l
	}
}

// WithBevelProfile replaces the corner-overlap profile.
func WithBevelProfile(b BevelProfile) Option {
	return func(c *config) {
		c.bevel = b
	}
}

// WithWorkers bounds the number of walls BuildPlan builds at once.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// withConfig replaces the whole config, for workers sharing one resolved set
// of options.
func withConfig(cfg config) Option {
	return func(c *config) {
		*c = cfg
	}
}

func newConfig(opts []Option) config {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	return c
}
