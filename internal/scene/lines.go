package scene

import (
	"regexp"
	"strings"
)

// blockStart matches lines that can only begin a statement. Python rejects
// them inside brackets, so they end any bracket continuation left open above.
var blockStart = regexp.MustCompile(`^\s*(async\s+def|def|class)\s+\w`)

// line is one physical source line with its computed layout.
type line struct {
	text   string
	indent int
	// ignorable lines (blank or comment-only) never close a block.
	ignorable bool
	// cont marks lines that continue the previous logical line: inside open
	// brackets, a triple-quoted string, or after a trailing backslash.
	cont bool
}

// code reports whether the line carries a statement or part of one.
func (l line) code() bool {
	if l.cont {
		return strings.TrimSpace(l.text) != ""
	}
	return !l.ignorable
}

type arena []line

func parseLines(text string) arena {
	raw := strings.Split(text, "\n")
	out := make(arena, len(raw))
	var sc tokenState
	for i, s := range raw {
		if sc.triple == "" && blockStart.MatchString(s) {
			sc.depth, sc.backslash = 0, false
		}
		trimmed := strings.TrimSpace(s)
		out[i] = line{
			text:      s,
			indent:    indentWidth(s),
			ignorable: trimmed == "" || strings.HasPrefix(trimmed, "#"),
			cont:      sc.continuing(),
		}
		sc.feed(s)
	}
	return out
}

func (a arena) join() string {
	parts := make([]string, len(a))
	for i, l := range a {
		parts[i] = l.text
	}
	return strings.Join(parts, "\n")
}

// blockEnd returns the index one past the last line of the block opened by
// the header at index h: the first later line that starts a logical line at
// an indentation no deeper than the header.
func (a arena) blockEnd(h int) int {
	for j := h + 1; j < len(a); j++ {
		l := a[j]
		if l.cont || l.ignorable {
			continue
		}
		if l.indent <= a[h].indent {
			return j
		}
	}
	return len(a)
}

// lastCode returns the index of the last statement line in (h, end), or h.
func (a arena) lastCode(h, end int) int {
	for j := end - 1; j > h; j-- {
		if a[j].code() {
			return j
		}
	}
	return h
}

// bodyIndent returns the leading whitespace of the first statement in the
// block (h, end), deriving one level deeper than the header when the block is
// empty.
func (a arena) bodyIndent(h, end int) string {
	for j := h + 1; j < end; j++ {
		if a[j].cont || a[j].ignorable {
			continue
		}
		return leadingWhitespace(a[j].text)
	}
	return deeper(leadingWhitespace(a[h].text))
}

// logicalEnd returns the index one past the logical line starting at i.
func (a arena) logicalEnd(i int) int {
	j := i + 1
	for j < len(a) && a[j].cont {
		j++
	}
	return j
}

// statement joins the physical lines [i, end) with trailing whitespace removed.
func (a arena) statement(i, end int) string {
	parts := make([]string, 0, end-i)
	for _, l := range a[i:end] {
		parts = append(parts, strings.TrimRight(l.text, " \t"))
	}
	return strings.Join(parts, "\n")
}

// splitSuite moves a statement written on the same line as the block header
// at h onto its own line, one level deeper, so lines can be appended to the
// block.
func (a arena) splitSuite(h int) arena {
	head, body, ok := inlineSuite(a[h].text)
	if !ok {
		return a
	}
	out := a.insert(h+1, deeper(leadingWhitespace(head))+body)
	out[h].text = head
	return out
}

// inlineSuite splits a block header such as "def f(self): f()" at the colon
// that closes it. ok is false when nothing but a comment follows the colon,
// or when the body would read as a fence line on its own.
func inlineSuite(text string) (head, body string, ok bool) {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '#':
			return "", "", false
		case '"', '\'':
			if q := text[i:min(i+3, len(text))]; q == `"""` || q == `'''` {
				j := strings.Index(text[i+3:], q)
				if j < 0 {
					return "", "", false
				}
				i += 3 + j + 2
				continue
			}
			i = skipString(text, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth > 0 {
				continue
			}
			rest := strings.TrimSpace(text[i+1:])
			if rest == "" || strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "```") {
				return "", "", false
			}
			return strings.TrimRight(text[:i+1], " \t"), rest, true
		}
	}
	return "", "", false
}

func (a arena) insert(at int, texts ...string) arena {
	added := make(arena, 0, len(texts))
	for _, t := range texts {
		added = append(added, line{text: t, indent: indentWidth(t)})
	}
	out := make(arena, 0, len(a)+len(added))
	out = append(out, a[:at]...)
	out = append(out, added...)
	return append(out, a[at:]...)
}

func deeper(prefix string) string {
	if strings.Contains(prefix, "\t") {
		return prefix + "\t"
	}
	return prefix + "    "
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// indentWidth measures indentation with tabs advancing to the next multiple
// of eight, matching the Python tokenizer.
func indentWidth(s string) int {
	w := 0
	for _, r := range s {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 8 - w%8
		default:
			return w
		}
	}
	return w
}

// tokenState tracks just enough of the Python lexer to know whether the next
// physical line continues the current logical line.
type tokenState struct {
	depth     int
	triple    string
	backslash bool
}

func (s *tokenState) continuing() bool {
	return s.depth > 0 || s.triple != "" || s.backslash
}

func (s *tokenState) feed(text string) {
	s.backslash = false
	i := 0
	for i < len(text) {
		if s.triple != "" {
			j := strings.Index(text[i:], s.triple)
			if j < 0 {
				return
			}
			i += j + len(s.triple)
			s.triple = ""
			continue
		}
		c := text[i]
		switch c {
		case '#':
			return
		case '"', '\'':
			if strings.HasPrefix(text[i:], `"""`) || strings.HasPrefix(text[i:], `'''`) {
				s.triple = text[i : i+3]
				i += 3
				continue
			}
			i = skipString(text, i)
			continue
		case '(', '[', '{':
			s.depth++
		case ')', ']', '}':
			if s.depth > 0 {
				s.depth--
			}
		}
		i++
	}
	s.backslash = strings.HasSuffix(text, `\`)
}

// skipString returns the index just past the single-line string literal that
// opens at text[start]. Unterminated literals run to the end of the line.
func skipString(text string, start int) int {
	quote := text[start]
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(text)
}
