package plan

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/site-packager/internal/config"
	"github.com/oshokin/site-packager/internal/manifest"
)

// newSourceTree seeds an in-memory filesystem with an exported site.
func newSourceTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}

	return fsys
}

// defaultConfig returns validated default settings.
func defaultConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestBuildFullTree covers the complete scenario: mirror, promotion, rewrite, manifest.
func TestBuildFullTree(t *testing.T) {
	t.Parallel()

	fsys := newSourceTree(t, map[string]string{
		"dist/index.html": `<script src="/_expo/static/js/web/AppEntry-abc123.js"></script>`,
		"dist/_expo/static/js/web/AppEntry-abc123.js": "console.log(1)",
		"dist/assets/logo.png":                        "png-bytes",
	})

	p, err := Build(fsys, defaultConfig(t))
	require.NoError(t, err)

	require.Equal(t, filepath.Join(".vercel/output", "static"), p.StaticDir)
	require.Equal(t, filepath.Join(".vercel/output", "config"), p.ConfigDir)
	require.Equal(t, filepath.Join(".vercel/output", "config.json"), p.ManifestPath)
	require.Equal(t, manifest.Default(), p.Manifest)

	// Every source file is mirrored under the static root.
	mirrored := make(map[string]string, len(p.Copies))
	for _, c := range p.Copies {
		mirrored[c.Src] = c.Dst
	}

	require.Len(t, mirrored, 3)
	require.Equal(t,
		filepath.Join(p.StaticDir, "assets/logo.png"),
		mirrored[filepath.Join("dist", "assets/logo.png")])
	require.Equal(t,
		filepath.Join(p.StaticDir, "_expo/static/js/web/AppEntry-abc123.js"),
		mirrored[filepath.Join("dist", "_expo/static/js/web/AppEntry-abc123.js")])

	// Bundle is promoted to the static root under the fixed name.
	require.NotNil(t, p.Bundle)
	require.Equal(t, filepath.Join("dist", "_expo/static/js/web/AppEntry-abc123.js"), p.Bundle.Src)
	require.Equal(t, filepath.Join(p.StaticDir, "bundle.js"), p.Bundle.Dst)

	// Entry rewrite targets the mirrored copy.
	require.NotNil(t, p.Rewrite)
	require.Equal(t, filepath.Join(p.StaticDir, "index.html"), p.Rewrite.Path)
}

// TestBuildMissingSource ensures a missing build directory narrows the plan
// to directories and manifest only.
func TestBuildMissingSource(t *testing.T) {
	t.Parallel()

	p, err := Build(afero.NewMemMapFs(), defaultConfig(t))
	require.NoError(t, err)
	require.Empty(t, p.Copies)
	require.Nil(t, p.Bundle)
	require.Nil(t, p.Rewrite)
	require.NotNil(t, p.Manifest)
}

// TestBuildNoBundleMatch ensures an unmatched bundle directory skips
// promotion and rewrite but keeps the mirror.
func TestBuildNoBundleMatch(t *testing.T) {
	t.Parallel()

	fsys := newSourceTree(t, map[string]string{
		"dist/index.html":                        `<script src="/other.js"></script>`,
		"dist/_expo/static/js/web/vendor.js":     "console.log(2)",
		"dist/_expo/static/js/web/AppEntry.wasm": "not-js",
	})

	p, err := Build(fsys, defaultConfig(t))
	require.NoError(t, err)
	require.Len(t, p.Copies, 3)
	require.Nil(t, p.Bundle)
	require.Nil(t, p.Rewrite)
}

// TestBuildPicksFirstMatch ensures listing order decides between candidates.
func TestBuildPicksFirstMatch(t *testing.T) {
	t.Parallel()

	fsys := newSourceTree(t, map[string]string{
		"dist/index.html": `<script src="/_expo/static/js/web/AppEntry-a.js"></script>`,
		"dist/_expo/static/js/web/AppEntry-a.js": "a",
		"dist/_expo/static/js/web/AppEntry-b.js": "b",
	})

	p, err := Build(fsys, defaultConfig(t))
	require.NoError(t, err)
	require.NotNil(t, p.Bundle)
	require.Equal(t, filepath.Join("dist", "_expo/static/js/web/AppEntry-a.js"), p.Bundle.Src)
}

// TestRewriteApply checks first-occurrence replacement and no-match passthrough.
func TestRewriteApply(t *testing.T) {
	t.Parallel()

	r := &Rewrite{
		Pattern:     rewritePattern(config.DefaultBundlePattern),
		Replacement: `src="/bundle.js"`,
	}

	in := `<link rel="icon" href="/favicon.ico"><script defer src="/_expo/static/js/web/AppEntry-abc123.js"></script>`

	out, changed := r.Apply(in)
	require.True(t, changed)
	require.Equal(t,
		`<link rel="icon" href="/favicon.ico"><script defer src="/bundle.js"></script>`,
		out)

	// Only the first occurrence is replaced.
	twice := in + in

	out, changed = r.Apply(twice)
	require.True(t, changed)
	require.Contains(t, out, "AppEntry-abc123.js")

	// Untouched content passes through.
	out, changed = r.Apply(`<script src="/vendor.js"></script>`)
	require.False(t, changed)
	require.Equal(t, `<script src="/vendor.js"></script>`, out)
}
