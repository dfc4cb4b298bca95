// Package config defines packaging settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every field has a default matching the conventional Expo web export and
// Vercel Build Output layout, so running without a settings file packages
// ./dist into ./.vercel/output.
package config
