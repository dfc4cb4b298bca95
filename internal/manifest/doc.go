// Package manifest models the Vercel Build Output API v3 config.json
// document. The hosting platform matches routes in order and key order is
// part of the contract, so fields are serialized in declaration order and
// the document is written with 2-space indentation.
package manifest
