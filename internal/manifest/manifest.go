package manifest

import (
	"encoding/json"
	"fmt"
)

const (
	// Filename is the manifest filename at the output root.
	Filename = "config.json"

	// SchemaVersion is the Build Output API version the document targets.
	SchemaVersion = 3

	// immutableCacheControl marks hashed assets as cacheable for a year.
	immutableCacheControl = "public, max-age=31536000, immutable"
)

// Route is one routing rule. The platform distinguishes matcher routes
// (Src with optional Headers/Continue/Dest) from handler routes (Handle),
// hence every field is optional on the wire.
type Route struct {
	// Src is a regular expression matched against the request path.
	Src string `json:"src,omitempty"`
	// Headers are response headers applied when Src matches.
	Headers map[string]string `json:"headers,omitempty"`
	// Continue lets matching proceed to subsequent routes.
	Continue bool `json:"continue,omitempty"`
	// Handle switches the router phase, e.g. "filesystem".
	Handle string `json:"handle,omitempty"`
	// Dest rewrites the request to another path.
	Dest string `json:"dest,omitempty"`
}

// Manifest is the root config.json document.
type Manifest struct {
	// Version is the Build Output API schema version.
	Version int `json:"version"`
	// Routes are evaluated in order for every request.
	Routes []Route `json:"routes"`
}

// Default returns the routing manifest for a single-page static site:
// long-lived caching for hashed assets, filesystem serving, and an
// index.html fallback for client-side routing.
func Default() *Manifest {
	immutable := map[string]string{
		"Cache-Control": immutableCacheControl,
	}

	return &Manifest{
		Version: SchemaVersion,
		Routes: []Route{
			{Src: "^/static/(.*)$", Headers: immutable, Continue: true},
			{Src: "^/assets/(.*)$", Headers: immutable, Continue: true},
			{Handle: "filesystem"},
			{Src: "/(.*)", Dest: "/index.html"},
		},
	}
}

// Encode renders the document with 2-space indentation,
// byte-for-byte as the hosting platform expects it.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return data, nil
}
