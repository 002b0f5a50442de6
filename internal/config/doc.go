// Package config loads, normalizes, and validates manimate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and MANIMATE_DATABASE_URL. The Config type centralizes every
// knob the server and CLI need: the render working directory, the canonical
// output location, the renderer invocation, the model endpoint and the
// history store.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
