// Command manimate turns text prompts into Manim videos.
//
// `manimate serve` runs the HTTP API. The remaining commands drive the same
// pipeline from a terminal: generate renders a prompt, render and normalize
// work on scene source directly, history lists past renders, doctor runs the
// preflight checks and config manages the TOML file.
package main
