// Package scene turns untrusted model output into Manim source that the render
// stage can always execute.
//
// Normalize is total and pure: any input string yields a Source whose text
// starts with the canonical import preamble, declares the GeneratedScene entry
// point, holds on a trailing self.wait() inside construct, carries no
// conflicting manim imports, and has no oversized font_size arguments. Input
// without an entry point degrades to MinimalScene instead of returning an
// error.
//
// The repair passes run over a line arena that tracks indentation and
// bracket/string continuation explicitly, so block extents (where construct
// ends, where the class ends) are computed the way the Python tokenizer would
// see them rather than by substring search.
//
// The fixed fallback scenes used by the request pipeline live here as well so
// every caller shares one definition and each is a fixed point of Normalize.
package scene
