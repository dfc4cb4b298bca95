package integration

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/site-packager/internal/manifest"
	"github.com/oshokin/site-packager/internal/service/packager"
)

// chdir changes the working directory for the test and restores the
// previous one on cleanup (stand-in for t.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

// writeTree creates files with parent directories under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// readTree returns relative path to content for every file under root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		tree[filepath.ToSlash(rel)] = string(contents)

		return nil
	})
	require.NoError(t, err)

	return tree
}

// TestPackager_EndToEnd packages a real build directory on disk and verifies
// the complete output contract, including a byte-identical second run.
func TestPackager_EndToEnd(t *testing.T) {
	// Setup test directory and change working directory.
	dir := t.TempDir()

	chdir(t, dir)

	writeTree(t, "dist", map[string]string{
		"index.html": `<script src="/_expo/static/js/web/AppEntry-abc123.js"></script>`,
		"_expo/static/js/web/AppEntry-abc123.js": "console.log(1)",
		"assets/logo.png":                        "png-bytes",
	})

	// Run packager with timeout context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, packager.Run(ctx, &packager.Options{}))

	static := readTree(t, filepath.Join(".vercel/output", "static"))
	require.Equal(t, map[string]string{
		"index.html":                             `<script src="/bundle.js"></script>`,
		"_expo/static/js/web/AppEntry-abc123.js": "console.log(1)",
		"assets/logo.png":                        "png-bytes",
		"bundle.js":                              "console.log(1)",
	}, static)

	// Manifest at the output root deep-equals the fixed document.
	manifestBytes, err := os.ReadFile(filepath.Join(".vercel/output", "config.json"))
	require.NoError(t, err)

	var decoded manifest.Manifest
	require.NoError(t, json.Unmarshal(manifestBytes, &decoded))
	require.Equal(t, manifest.Default(), &decoded)

	// The marker is released after the run.
	_, err = os.Stat("site-packager-marker.bin")
	require.ErrorIs(t, err, os.ErrNotExist)

	// A second run regenerates a byte-identical tree.
	first := readTree(t, ".vercel/output")

	require.NoError(t, packager.Run(ctx, &packager.Options{}))
	require.Equal(t, first, readTree(t, ".vercel/output"))
}

// TestPackager_MissingSource ensures a missing build directory still yields
// an empty static tree plus a manifest and exits cleanly.
func TestPackager_MissingSource(t *testing.T) {
	dir := t.TempDir()

	chdir(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, packager.Run(ctx, &packager.Options{}))

	require.Empty(t, readTree(t, filepath.Join(".vercel/output", "static")))

	_, err := os.Stat(filepath.Join(".vercel/output", "config.json"))
	require.NoError(t, err)
}

// TestPackager_SourceOverride ensures the source flag wins over defaults.
func TestPackager_SourceOverride(t *testing.T) {
	dir := t.TempDir()

	chdir(t, dir)

	writeTree(t, "web-build", map[string]string{
		"index.html": "<html></html>",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, packager.Run(ctx, &packager.Options{SourceDir: "web-build"}))

	static := readTree(t, filepath.Join(".vercel/output", "static"))
	require.Equal(t, map[string]string{"index.html": "<html></html>"}, static)
}
