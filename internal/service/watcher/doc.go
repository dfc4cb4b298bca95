// Package watcher monitors the source build directory recursively and
// invokes a callback once changes settle, so watch mode repackages on
// every export instead of on every individual file event.
package watcher
