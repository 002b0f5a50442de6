package scene

// Fallback scenes substituted by the request pipeline. Each one is already in
// normalized form, so Normalize returns it unchanged.
const (
	// MinimalScene replaces model output that declares no entry point.
	MinimalScene = `from manim import *

class GeneratedScene(Scene):
    def construct(self):
        text = Text("Error generating animation")
        self.play(Write(text))
        self.wait()
`

	// QuotaExhaustedScene is rendered when the model provider reports that the
	// account has run out of quota.
	QuotaExhaustedScene = `from manim import *

class GeneratedScene(Scene):
    def construct(self):
        text = Text("API limit reached. Try again tomorrow.", font_size=36, color=YELLOW)
        self.play(Write(text))
        self.wait(2)
`

	// RenderFailedScene is rendered once after a failed render attempt.
	RenderFailedScene = `from manim import *

class GeneratedScene(Scene):
    def construct(self):
        text = Text("Failed to render animation.", font_size=36, color=RED)
        self.play(Write(text))
        self.wait(2)
`
)

// Minimal returns MinimalScene as a fallback Source.
func Minimal() Source {
	return Source{Text: MinimalScene, Fallback: true, EntryPoints: 1}
}

// Fixed wraps one of the fallback scenes as a Source without running the
// repair passes.
func Fixed(text string) Source {
	return Source{Text: text, Fallback: true, EntryPoints: 1}
}
