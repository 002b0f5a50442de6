package scene

import (
	"regexp"
	"strings"
	"testing"
)

var oversizedFont = regexp.MustCompile(`\bfont_size\s*=\s*[1-9][0-9]{2,}`)

func FuzzNormalize(f *testing.F) {
	seeds := []string{
		"",
		MinimalScene,
		QuotaExhaustedScene,
		RenderFailedScene,
		"```python\nclass GeneratedScene(Scene):\n    def construct(self):\n        self.add(Text('x', font_size=300))\n```",
		"from manim import *\nimport numpy as np\nclass GeneratedScene:\n    def construct(self):\n        axes = ThreeDAxes()\n",
		"Explanation first.\nfrom manim import Circle\nclass GeneratedScene(Scene):\n    pass",
		"class GeneratedScene(Scene):\n\tdef construct(self):\n\t\tself.play(\n\t\t\tFadeIn(Dot()))",
		"from manim import *\r\nclass GeneratedScene(Scene):\r\n    def construct(self): self.wait()\r\n",
		"   class GeneratedScene(Scene):\n    def construct(self):\n        '''self.wait()'''\n",
		"from manim import *\nclass GeneratedScene(Scene):\n    def construct(self): self.add(Dot())\n",
		"class GeneratedScene(Scene): pass",
		"class GeneratedScene (",
		"from manim import *\nimport math\nimport math\nclass GeneratedScene(Scene):\n    def construct(self):\n        self.wait()\n",
		"from manim import *\nimport numpy\nclass GeneratedScene(Scene):\n    def construct(self):\n        a = numpy.array([1])\n",
		"    from manim import *\n    class GeneratedScene(Scene):\n        def construct(self):\n            self.add(Text(\"```\"))\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		first := Normalize(raw)
		if !strings.HasPrefix(first.Text, Preamble+"\n") {
			t.Fatalf("missing preamble: %q", first.Text)
		}
		if !strings.HasSuffix(first.Text, "\n") || strings.HasSuffix(first.Text, "\n\n") {
			t.Fatalf("output must end in one newline: %q", first.Text)
		}
		if !strings.Contains(first.Text, "class "+EntryPoint) {
			t.Fatalf("missing entry point: %q", first.Text)
		}
		if oversizedFont.MatchString(first.Text) {
			t.Fatalf("oversized font survived: %q", first.Text)
		}
		if !constructHolds(first.Text) {
			t.Fatalf("construct of the first entry point has no hold: %q", first.Text)
		}
		if dup := duplicateImport(first.Text); dup != "" {
			t.Fatalf("duplicate top-level import %q: %q", dup, first.Text)
		}
		second := Normalize(first.Text)
		if second.Text != first.Text {
			t.Fatalf("not idempotent:\nfirst:  %q\nsecond: %q", first.Text, second.Text)
		}
	})
}

// constructHolds reports whether the construct method of the first entry
// point contains a self.wait( call, either after its header colon or on a
// statement line of its block.
func constructHolds(text string) bool {
	a := parseLines(text)
	entries := entryPoints(a)
	if len(entries) == 0 {
		return false
	}
	e := entries[0]
	classEnd := a.blockEnd(e)
	for j := e + 1; j < classEnd; j++ {
		if a[j].cont || a[j].ignorable || !constructDecl.MatchString(a[j].text) {
			continue
		}
		if _, body, ok := inlineSuite(a[j].text); ok && holdCall.MatchString(body) {
			return true
		}
		end := a.blockEnd(j)
		for k := j + 1; k < end; k++ {
			if a[k].code() && a[k].indent > a[j].indent && holdCall.MatchString(a[k].text) {
				return true
			}
		}
		return false
	}
	return false
}

// duplicateImport returns the first top-level import statement that occurs
// twice, or "".
func duplicateImport(text string) string {
	a := parseLines(text)
	seen := make(map[string]bool)
	for i := 0; i < len(a); i++ {
		if a[i].cont || a[i].indent > 0 || !topLevelImport.MatchString(a[i].text) {
			continue
		}
		end := a.logicalEnd(i)
		stmt := a.statement(i, end)
		if seen[stmt] {
			return stmt
		}
		seen[stmt] = true
		i = end - 1
	}
	return ""
}
