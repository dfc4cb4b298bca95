package packager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/oshokin/site-packager/internal/config"
	"github.com/oshokin/site-packager/internal/logger"
	"github.com/oshokin/site-packager/internal/plan"
	"github.com/oshokin/site-packager/internal/service/watcher"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to packaging settings (defaults to settings.yaml).
	ConfigPath string
	// SourceDir overrides the configured source build directory.
	SourceDir string
	// OutputDir overrides the configured output root.
	OutputDir string
	// Watch keeps the process alive and repackages on source changes.
	Watch bool
}

const (
	// defaultDirMode is used for directories created under the output root.
	defaultDirMode os.FileMode = 0o755

	// defaultFileMode is used for files written under the output root.
	defaultFileMode os.FileMode = 0o644
)

// Service executes packaging runs against a filesystem abstraction.
// Production passes an OS-backed filesystem; tests pass an in-memory one.
type Service struct {
	// fs is the filesystem all reads and writes go through.
	fs afero.Fs
	// cfg holds the paths and patterns for the run.
	cfg *config.Config
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "site-packager")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Command line overrides take precedence over the settings file.
	if opts.SourceDir != "" {
		cfg.SourceDir = opts.SourceDir
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if err = config.Validate(cfg); err != nil {
		return err
	}

	if IsPackagerRunningNow(ctx) {
		return errPackagerRunning
	}

	if err = acquireMarker(); err != nil {
		return fmt.Errorf("acquire packaging marker: %w", err)
	}

	defer releaseMarker(ctx)

	svc := NewService(afero.NewOsFs(), cfg)

	if err = svc.Package(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	if !opts.Watch {
		return nil
	}

	w, err := watcher.New(cfg.SourceDir, watcher.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("watch source directory: %w", err)
	}

	// Best-effort cleanup.
	defer func() {
		_ = w.Close()
	}()

	return w.Run(ctx, svc.Package)
}

// NewService creates a packaging service over the provided filesystem and settings.
func NewService(fsys afero.Fs, cfg *config.Config) *Service {
	return &Service{
		fs:  fsys,
		cfg: cfg,
	}
}

// Package plans one run and executes it.
func (s *Service) Package(ctx context.Context) error {
	logger.InfoKV(ctx, "Packaging static build",
		"source", s.cfg.SourceDir, "output", s.cfg.OutputDir)

	p, err := plan.Build(s.fs, s.cfg)
	if err != nil {
		return fmt.Errorf("plan packaging: %w", err)
	}

	return s.Execute(ctx, p)
}

// Execute applies a plan: reset, mirror, promote, rewrite, manifest.
// The steps are strictly sequential, each relying on the state left by
// the previous one.
func (s *Service) Execute(ctx context.Context, p *plan.Plan) error {
	if err := s.resetOutput(ctx, p); err != nil {
		return err
	}

	if err := s.mirrorTree(ctx, p); err != nil {
		return err
	}

	if err := s.promoteBundle(ctx, p); err != nil {
		return err
	}

	if err := s.rewriteEntry(ctx, p); err != nil {
		return err
	}

	return s.writeManifest(ctx, p)
}

// resetOutput removes any previous output tree and recreates the skeleton,
// so a run never merges with stale state.
func (s *Service) resetOutput(ctx context.Context, p *plan.Plan) error {
	logger.InfoKV(ctx, "Resetting output directory", "path", p.OutputDir)

	if err := s.fs.RemoveAll(p.OutputDir); err != nil {
		return fmt.Errorf("remove %s: %w", p.OutputDir, err)
	}

	for _, dir := range []string{p.StaticDir, p.ConfigDir} {
		if err := s.fs.MkdirAll(dir, defaultDirMode); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}

// mirrorTree copies every planned file into the static root.
func (s *Service) mirrorTree(ctx context.Context, p *plan.Plan) error {
	logger.Infof(ctx, "Mirroring %d files into %s", len(p.Copies), p.StaticDir)

	for _, c := range p.Copies {
		if err := s.copyFile(c); err != nil {
			return err
		}
	}

	return nil
}

// promoteBundle places a second copy of the located bundle at the static root.
func (s *Service) promoteBundle(ctx context.Context, p *plan.Plan) error {
	if p.Bundle == nil {
		logger.Info(ctx, "No bundle matched, skipping promotion")
		return nil
	}

	logger.InfoKV(ctx, "Promoting bundle", "from", p.Bundle.Src, "to", p.Bundle.Dst)

	return s.copyFile(*p.Bundle)
}

// rewriteEntry patches the mirrored entry point to reference the promoted bundle.
func (s *Service) rewriteEntry(ctx context.Context, p *plan.Plan) error {
	if p.Rewrite == nil {
		logger.Info(ctx, "No entry point to rewrite, skipping")
		return nil
	}

	logger.InfoKV(ctx, "Rewriting entry point", "path", p.Rewrite.Path)

	contents, err := afero.ReadFile(s.fs, p.Rewrite.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.Rewrite.Path, err)
	}

	patched, changed := p.Rewrite.Apply(string(contents))
	if !changed {
		logger.Info(ctx, "Entry point does not reference the bundle, leaving as is")
		return nil
	}

	if err = afero.WriteFile(s.fs, p.Rewrite.Path, []byte(patched), defaultFileMode); err != nil {
		return fmt.Errorf("write %s: %w", p.Rewrite.Path, err)
	}

	return nil
}

// writeManifest emits the routing manifest at the output root.
func (s *Service) writeManifest(ctx context.Context, p *plan.Plan) error {
	logger.InfoKV(ctx, "Writing routing manifest", "path", p.ManifestPath)

	data, err := p.Manifest.Encode()
	if err != nil {
		return err
	}

	if err = afero.WriteFile(s.fs, p.ManifestPath, data, defaultFileMode); err != nil {
		return fmt.Errorf("write %s: %w", p.ManifestPath, err)
	}

	return nil
}

// copyFile copies one file, creating destination directories as needed.
func (s *Service) copyFile(c plan.Copy) error {
	if err := s.fs.MkdirAll(filepath.Dir(c.Dst), defaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(c.Dst), err)
	}

	src, err := s.fs.Open(c.Src)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Src, err)
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := s.fs.OpenFile(c.Dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFileMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Dst, err)
	}

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return fmt.Errorf("copy %s: %w", c.Src, err)
	}

	if err = dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.Dst, err)
	}

	return nil
}
