package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/oshokin/site-packager/internal/config"
	"github.com/oshokin/site-packager/internal/manifest"
)

// Copy is a single file copy from Src to Dst.
type Copy struct {
	// Src is the path of the file to read.
	Src string
	// Dst is the path the file is written to.
	Dst string
}

// Rewrite patches the HTML entry point to reference the promoted bundle.
type Rewrite struct {
	// Path is the entry file under the static root.
	Path string
	// Pattern matches the src attribute pointing at the original bundle.
	Pattern *regexp.Regexp
	// Replacement is the attribute referencing the promoted bundle.
	Replacement string
}

// Apply replaces the first occurrence of the pattern in the content.
// The second return value reports whether anything matched.
func (r *Rewrite) Apply(content string) (string, bool) {
	loc := r.Pattern.FindStringIndex(content)
	if loc == nil {
		return content, false
	}

	return content[:loc[0]] + r.Replacement + content[loc[1]:], true
}

// Plan describes everything one packaging run will do.
type Plan struct {
	// OutputDir is the output root, removed and recreated on execution.
	OutputDir string
	// StaticDir is the subdirectory mirroring the source build tree.
	StaticDir string
	// ConfigDir is the platform config subdirectory.
	ConfigDir string
	// Copies mirrors every source file into StaticDir, relative paths preserved.
	Copies []Copy
	// Bundle promotes the located JS bundle to the static root, nil when absent.
	Bundle *Copy
	// Rewrite patches the entry point, nil when the entry or bundle is absent.
	Rewrite *Rewrite
	// Manifest is the routing document written to ManifestPath.
	Manifest *manifest.Manifest
	// ManifestPath is the manifest location at the output root.
	ManifestPath string
}

// Build inspects the source tree and produces the plan for it.
// Absence of the source directory, the bundle directory, a matching bundle
// or the entry file narrows the plan instead of failing.
func Build(fsys afero.Fs, cfg *config.Config) (*Plan, error) {
	p := &Plan{
		OutputDir:    cfg.OutputDir,
		StaticDir:    filepath.Join(cfg.OutputDir, "static"),
		ConfigDir:    filepath.Join(cfg.OutputDir, "config"),
		Manifest:     manifest.Default(),
		ManifestPath: filepath.Join(cfg.OutputDir, manifest.Filename),
	}

	if err := collectCopies(fsys, cfg.SourceDir, p); err != nil {
		return nil, err
	}

	bundle, err := locateBundle(fsys, cfg)
	if err != nil {
		return nil, err
	}

	if bundle == "" {
		return p, nil
	}

	p.Bundle = &Copy{
		Src: bundle,
		Dst: filepath.Join(p.StaticDir, cfg.BundleName),
	}

	entry := filepath.Join(cfg.SourceDir, cfg.EntryFile)

	exists, err := afero.Exists(fsys, entry)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", entry, err)
	}

	if exists {
		p.Rewrite = &Rewrite{
			Path:        filepath.Join(p.StaticDir, cfg.EntryFile),
			Pattern:     rewritePattern(cfg.BundlePattern),
			Replacement: `src="/` + cfg.BundleName + `"`,
		}
	}

	return p, nil
}

// collectCopies walks the source tree and records a mirror copy per file.
// A missing source directory yields an empty mirror.
func collectCopies(fsys afero.Fs, sourceDir string, p *Plan) error {
	exists, err := afero.DirExists(fsys, sourceDir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", sourceDir, err)
	}

	if !exists {
		return nil
	}

	return afero.Walk(fsys, sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		p.Copies = append(p.Copies, Copy{
			Src: path,
			Dst: filepath.Join(p.StaticDir, rel),
		})

		return nil
	})
}

// locateBundle returns the first entry of the bundle directory matching the
// configured glob, or an empty string when the directory or match is absent.
func locateBundle(fsys afero.Fs, cfg *config.Config) (string, error) {
	dir := filepath.Join(cfg.SourceDir, filepath.FromSlash(cfg.BundleDir))

	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", dir, err)
	}

	if !exists {
		return "", nil
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matched, err := doublestar.Match(cfg.BundlePattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("match %q: %w", cfg.BundlePattern, err)
		}

		if matched {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}

// rewritePattern derives the src-attribute matcher from the bundle glob.
// The glob's literal prefix anchors the match inside any path, so
// "AppEntry*.js" becomes src="...AppEntry....js" with arbitrary
// surroundings inside the quotes.
func rewritePattern(bundlePattern string) *regexp.Regexp {
	token := bundlePattern
	if i := strings.IndexAny(bundlePattern, "*?[{"); i >= 0 {
		token = bundlePattern[:i]
	}

	if token == bundlePattern {
		// Literal filename, no wildcards to absorb.
		return regexp.MustCompile(`src="[^"]*` + regexp.QuoteMeta(token) + `"`)
	}

	return regexp.MustCompile(`src="[^"]*` + regexp.QuoteMeta(token) + `[^"]*\.js"`)
}
