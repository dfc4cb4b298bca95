// Package plan computes the full set of filesystem operations for one
// packaging run without performing any of them. A Plan lists directories
// to create, files to mirror, the optional bundle promotion, the optional
// entry-point rewrite and the routing manifest, so the effectful executor
// stays trivial and every decision is testable against an in-memory tree.
package plan
