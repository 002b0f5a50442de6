package scene

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	// EntryPoint is the reserved class name the renderer is invoked against.
	EntryPoint = "GeneratedScene"
	// Preamble is the canonical first line of every normalized source.
	Preamble = "from manim import *"
	// NumericImport is the only secondary import the preamble may carry.
	NumericImport = "import numpy as np"
	// HoldCall is appended to construct when the body never pauses.
	HoldCall = "self.wait()"

	// FontSizeThreshold is the smallest font_size value that gets clamped.
	FontSizeThreshold = 100
	// FontSizeCeiling replaces every clamped font_size value.
	FontSizeCeiling = 48

	defaultBase = "Scene"
	threeDBase  = "ThreeDScene"
)

// Source is a normalized scene ready for rendering. Only Text reaches the
// renderer; the remaining fields describe which repairs were applied.
type Source struct {
	Text string

	// Fallback is set when the input had no entry point and Text is a fixed
	// fallback scene.
	Fallback bool
	// ThreeD is set when the entry point renders against ThreeDScene.
	ThreeD bool
	// HoldInserted is set when construct had no self.wait() call.
	HoldInserted bool
	// Clamped counts font_size arguments rewritten to FontSizeCeiling.
	Clamped int
	// EntryPoints counts GeneratedScene declarations. Only the first one
	// drives the hold repair; later ones are left in place.
	EntryPoints int
}

var (
	topLevelImport = regexp.MustCompile(`^(import\s+\w|from\s+[\w.]+\s+import\s)`)
	manimImport    = regexp.MustCompile(`^(from\s+manim(\.[\w.]*)?\s+import\b|import\s+manim(\.[\w.]*)?(\s|,|;|$))`)
	numpyImport    = regexp.MustCompile(`^import\s+numpy\s+as\s+np\s*(#.*)?$`)
	entryBase      = regexp.MustCompile(`^class\s+` + EntryPoint + `\s*(\(([^()]*)\))?\s*:`)
	constructDecl  = regexp.MustCompile(`^\s*def\s+construct\s*\(`)
	holdCall       = regexp.MustCompile(`\bself\.wait\s*\(`)
	fontSize       = regexp.MustCompile(`\bfont_size\s*=\s*[1-9][0-9]{2,}(\.[0-9]+)?`)

	// threeDKeywords are the constructs that only render under ThreeDScene.
	threeDKeywords = regexp.MustCompile(`\b(` + strings.Join([]string{
		"ThreeDScene",
		"ThreeDAxes",
		"ThreeDCamera",
		"Surface",
		"Sphere",
		"Cube",
		"Prism",
		"Cylinder",
		"Cone",
		"Torus",
		"Dot3D",
		"Line3D",
		"Arrow3D",
		"set_camera_orientation",
		"move_camera",
		"begin_ambient_camera_rotation",
	}, "|") + `)\b`)
)

// Normalize converts raw model output into a renderable Source. It never
// fails: input without a well-formed top-level GeneratedScene declaration
// yields MinimalScene.
func Normalize(raw string) Source {
	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw)
	text = stripFences(text)
	text = discoverPreamble(text)
	body, numeric := reconcileImports(text)

	a := parseLines(body)
	entries := entryPoints(a)
	if len(entries) == 0 {
		return Minimal()
	}

	src := Source{EntryPoints: len(entries)}
	src.ThreeD = threeDKeywords.MatchString(body)
	for _, idx := range entries {
		a[idx].text = rebase(a[idx].text, src.ThreeD)
	}
	a, src.HoldInserted = enforceHold(a, entries[0])

	body, src.Clamped = clampFontSize(a.join())
	src.Text = assemble(numeric, body)
	return src
}

func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '`' || unicode.IsSpace(r)
	})
}

// stripFences removes markdown code fence lines. When fenced blocks are
// present their contents are kept and the prose around them is dropped. An
// unclosed fence runs to the end of the text.
func stripFences(text string) string {
	var inside, outside []string
	open, fenced := false, false
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			open = !open
			fenced = true
			continue
		}
		if open {
			inside = append(inside, l)
		} else {
			outside = append(outside, l)
		}
	}
	if !fenced {
		return trimEdges(dedent(text))
	}
	kept := inside
	if strings.TrimSpace(strings.Join(inside, "")) == "" {
		kept = outside
	}
	return trimEdges(dedent(strings.Join(kept, "\n")))
}

// dedent removes the leading whitespace shared by every non-blank line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	common, seen := "", false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := leadingWhitespace(l)
		if !seen {
			common, seen = ws, true
			continue
		}
		n := 0
		for n < len(common) && n < len(ws) && common[n] == ws[n] {
			n++
		}
		common = common[:n]
	}
	if common == "" {
		return text
	}
	for i, l := range lines {
		if strings.HasPrefix(l, common) {
			lines[i] = l[len(common):]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}

// discoverPreamble drops explanation that precedes the canonical import, or
// prepends the import when it is missing.
func discoverPreamble(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if !strings.HasPrefix(l, importPrefix) {
			continue
		}
		if i == 0 {
			return text
		}
		kept := make([]string, 0, len(lines)-i)
		for _, before := range lines[:i] {
			if topLevelImport.MatchString(before) {
				kept = append(kept, before)
			}
		}
		return strings.Join(append(kept, lines[i:]...), "\n")
	}

	for offset := 0; ; {
		idx := strings.Index(text[offset:], importPrefix)
		if idx < 0 {
			break
		}
		idx += offset
		start := strings.LastIndex(text[:idx], "\n") + 1
		if c := text[start]; c != ' ' && c != '\t' {
			return text[idx:]
		}
		offset = idx + len(importPrefix)
	}
	return Preamble + "\n\n" + text
}

const importPrefix = "from manim import"

// reconcileImports strips every top-level manim import and `import numpy as
// np` so the preamble can be rebuilt once, and drops repeated top-level import
// statements after their first occurrence. numeric reports whether numpy was
// imported as np.
func reconcileImports(text string) (body string, numeric bool) {
	a := parseLines(text)
	kept := make([]string, 0, len(a))
	seen := make(map[string]bool)
	for i := 0; i < len(a); i++ {
		l := a[i]
		if l.cont || l.indent > 0 {
			kept = append(kept, l.text)
			continue
		}
		switch {
		case manimImport.MatchString(l.text):
			i = a.logicalEnd(i) - 1
		case numpyImport.MatchString(l.text):
			numeric = true
		case topLevelImport.MatchString(l.text):
			end := a.logicalEnd(i)
			stmt := a.statement(i, end)
			if !seen[stmt] {
				seen[stmt] = true
				for _, c := range a[i:end] {
					kept = append(kept, c.text)
				}
			}
			i = end - 1
		default:
			kept = append(kept, l.text)
		}
	}
	for len(kept) > 0 && strings.TrimSpace(kept[0]) == "" {
		kept = kept[1:]
	}
	return strings.Join(kept, "\n"), numeric
}

func entryPoints(a arena) []int {
	var out []int
	for i, l := range a {
		if !l.cont && entryBase.MatchString(l.text) {
			out = append(out, i)
		}
	}
	return out
}

// rebase rewrites the entry point's declaration into canonical form: a
// missing parent becomes the default scene kind, and Scene becomes
// ThreeDScene for 3D content.
func rebase(decl string, threeD bool) string {
	m := entryBase.FindStringSubmatchIndex(decl)
	if m == nil {
		return decl
	}
	base := ""
	if m[4] >= 0 {
		base = strings.TrimSpace(decl[m[4]:m[5]])
	}
	want := base
	switch {
	case base == "" && threeD:
		want = threeDBase
	case base == "":
		want = defaultBase
	case base == defaultBase && threeD:
		want = threeDBase
	}
	return "class " + EntryPoint + "(" + want + "):" + decl[m[1]:]
}

// enforceHold guarantees a self.wait() call inside the construct method of
// the entry point declared at line e.
func enforceHold(a arena, e int) (arena, bool) {
	classEnd := a.blockEnd(e)
	method := -1
	for j := e + 1; j < classEnd; j++ {
		if !a[j].cont && !a[j].ignorable && constructDecl.MatchString(a[j].text) {
			method = j
			break
		}
	}

	if method < 0 {
		a = a.splitSuite(e)
		classEnd = a.blockEnd(e)
		indent := a.bodyIndent(e, classEnd)
		at := a.lastCode(e, classEnd) + 1
		return a.insert(at, indent+"def construct(self):", deeper(indent)+HoldCall), true
	}

	end := a.blockEnd(method)
	if hasHold(a, method, end) {
		return a, false
	}
	a = a.splitSuite(method)
	end = a.blockEnd(method)
	indent := a.bodyIndent(method, end)
	at := a.lastCode(method, end) + 1
	return a.insert(at, indent+HoldCall), true
}

func hasHold(a arena, method, end int) bool {
	if _, body, ok := inlineSuite(a[method].text); ok && holdCall.MatchString(body) {
		return true
	}
	for j := method + 1; j < end; j++ {
		l := a[j]
		if l.indent <= a[method].indent || !l.code() {
			continue
		}
		if holdCall.MatchString(l.text) {
			return true
		}
	}
	return false
}

func clampFontSize(body string) (string, int) {
	count := 0
	out := fontSize.ReplaceAllStringFunc(body, func(string) string {
		count++
		return "font_size=" + strconv.Itoa(FontSizeCeiling)
	})
	return out, count
}

func assemble(numeric bool, body string) string {
	var b strings.Builder
	b.WriteString(Preamble)
	b.WriteByte('\n')
	if numeric {
		b.WriteString(NumericImport)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(strings.TrimRightFunc(body, func(r rune) bool {
		return r == '`' || unicode.IsSpace(r)
	}))
	b.WriteByte('\n')
	return b.String()
}
