// Command wallforge turns floor-plan scripts into textured wall meshes.
//
// Usage:
//
//	wallforge build -plan house.wall -out out [-stl] [-solid] [-png] [-json] [-v]
//	wallforge serve [-addr :8080] [-v]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/kernel/sdfx"
	"github.com/chazu/wallforge/pkg/preview"
	"github.com/chazu/wallforge/pkg/server"
	"github.com/chazu/wallforge/pkg/tessellate"
	"github.com/chazu/wallforge/pkg/texture"
	"github.com/chazu/wallforge/pkg/wall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

const usage = `usage:
  wallforge build -plan FILE -out DIR [-stl] [-solid] [-png] [-json] [-v]
  wallforge serve [-addr ADDR] [-v]
`

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "build":
		err = runBuild(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "wallforge: %v\n", err)
		return 1
	}
	return 0
}

// common holds the flags shared by every command.
type common struct {
	verbose  bool
	workers  int
	textures string
	assets   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "log build stages to stderr")
	fs.IntVar(&c.workers, "workers", 0, "walls built at once (0 = GOMAXPROCS)")
	fs.StringVar(&c.textures, "textures", "", "JSON covering catalog merged under the plan's own coverings")
	fs.StringVar(&c.assets, "assets", "", "directory texture URIs are resolved against")
}

// app configures logging and returns an App for the flags.
func (c *common) app(stderr io.Writer) (*App, error) {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	wall.SetLogger(logger)

	a := NewApp()
	a.logger = logger
	a.workers = c.workers
	if c.textures != "" {
		f, err := os.Open(c.textures)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		lib, err := texture.LoadLibraryJSON(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.textures, err)
		}
		a.catalog = lib
	}
	if c.assets != "" {
		a.loader = texture.NewLoader(os.DirFS(c.assets))
	}
	return a, nil
}

func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		c        common
		planPath = fs.String("plan", "", "plan script to build")
		outDir   = fs.String("out", ".", "output directory")
		stl      = fs.Bool("stl", false, "write all wall panels to plan.stl")
		solid    = fs.Bool("solid", false, "write a watertight STL per wall")
		cells    = fs.Int("cells", sdfx.DefaultMeshCells, "marching cubes resolution for -solid")
		png      = fs.Bool("png", false, "write an elevation PNG per wall")
		scale    = fs.Float64("scale", preview.DefaultOptions().Scale, "elevation pixels per plan unit")
		asJSON   = fs.Bool("json", false, "write the viewer mesh data to plan.json")
	)
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planPath == "" {
		return errors.New("build: -plan is required")
	}

	source, err := os.ReadFile(*planPath)
	if err != nil {
		return err
	}
	a, err := c.app(stderr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	compiled, err := a.Compile(ctx, string(source))
	if err != nil {
		return err
	}
	result := compiled.result()
	for _, w := range result.Warnings {
		a.logger.Warn(w.Message, slog.String("wall", w.Wall), slog.Int("line", w.Line))
	}
	for _, e := range result.Errors {
		a.logger.Error(e.Message, slog.String("wall", e.Wall), slog.Int("line", e.Line))
	}
	if len(compiled.Eval.Errors) > 0 {
		return fmt.Errorf("%s: %d evaluation errors", *planPath, len(compiled.Eval.Errors))
	}

	assemblies := compiled.Assemblies()
	if a.loader != nil {
		waitTextures(ctx, a.logger, assemblies)
	}

	if *stl {
		meshes, err := tessellate.Tessellate(assemblies)
		if err != nil {
			return err
		}
		path := filepath.Join(*outDir, "plan.stl")
		if err := sdfx.SaveMeshesSTL(path, meshes...); err != nil {
			return err
		}
		st := tessellate.Summarize(meshes)
		fmt.Fprintf(stdout, "wrote %s (%d meshes, %d triangles)\n", path, st.Meshes, st.Triangles)
	}

	for _, asm := range assemblies {
		if *solid {
			s, err := sdfx.SolidifyAssembly(asm)
			if err != nil {
				return fmt.Errorf("wall %s: %w", asm.WallID, err)
			}
			path := filepath.Join(*outDir, asm.WallID+"-solid.stl")
			if err := s.SaveSTL(path, *cells); err != nil {
				return fmt.Errorf("wall %s: %w", asm.WallID, err)
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
		if *png {
			opts := preview.DefaultOptions()
			opts.Scale = *scale
			path := filepath.Join(*outDir, asm.WallID+".png")
			if err := preview.SavePNG(path, asm, opts); err != nil {
				return fmt.Errorf("wall %s: %w", asm.WallID, err)
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
	}

	if *asJSON {
		path := filepath.Join(*outDir, "plan.json")
		if err := writeJSON(path, result); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}

	fmt.Fprintln(stdout, compiled.summary())
	if failed := wall.Failed(compiled.Results); len(failed) > 0 {
		return fmt.Errorf("%d walls failed to build", len(failed))
	}
	return nil
}

// waitTextures blocks until every face covering has loaded or failed, and
// logs the failures.
func waitTextures(ctx context.Context, logger *slog.Logger, assemblies []*kernel.Assembly) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, asm := range assemblies {
		for _, face := range asm.Faces() {
			for _, h := range []*texture.Handle{face.Material.Map, face.Material.NormalMap} {
				if h == nil {
					continue
				}
				if _, err := h.Wait(ctx); err != nil {
					logger.Warn("texture unavailable", slog.String("wall", asm.WallID),
						slog.String("uri", h.URI()), slog.Any("err", err))
				}
			}
		}
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	origin := fs.String("origin", "", "extra origin pattern allowed to connect, e.g. localhost:5173")
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.app(stderr)
	if err != nil {
		return err
	}
	opts := server.Options{Logger: a.logger}
	if *origin != "" {
		opts.OriginPatterns = []string{*origin}
	}
	return server.New(a, opts).ListenAndServe(ctx, *addr)
}
