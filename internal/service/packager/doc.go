// Package packager turns a static web build into the Vercel Build Output
// layout: a mirrored static tree, a promoted root-level bundle, a rewritten
// entry point and a routing manifest.
//
// Planning is delegated to the plan package; this package owns the
// effectful part (reset, copy, rewrite, write) over an afero filesystem,
// plus the single-instance guard and the optional watch loop.
package packager
