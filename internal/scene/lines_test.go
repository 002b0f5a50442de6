package scene

import "testing"

func TestParseLinesContinuation(t *testing.T) {
	a := parseLines("x = f(\n    1,\n)\ns = \"\"\"\ndoc\n\"\"\"\ny = 1 + \\\n    2\nz = '(' # (\nw = 1")
	want := []bool{false, true, true, false, true, true, false, true, false, false}
	if len(a) != len(want) {
		t.Fatalf("parsed %d lines, want %d", len(a), len(want))
	}
	for i, l := range a {
		if l.cont != want[i] {
			t.Fatalf("line %d %q: cont = %v, want %v", i, l.text, l.cont, want[i])
		}
	}
}

func TestIndentWidth(t *testing.T) {
	tests := map[string]int{
		"x":        0,
		"    x":    4,
		"\tx":      8,
		"  \tx":    8,
		"\t  x":    10,
		"        ": 8,
	}
	for in, want := range tests {
		if got := indentWidth(in); got != want {
			t.Fatalf("indentWidth(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBlockEnd(t *testing.T) {
	a := parseLines("class A:\n    def f(self):\n        x = (\n1)\n\n        # tail\n    def g(self):\n        pass\nprint(1)")
	if got := a.blockEnd(1); got != 6 {
		t.Fatalf("blockEnd(f) = %d, want 6", got)
	}
	if got := a.blockEnd(0); got != 8 {
		t.Fatalf("blockEnd(A) = %d, want 8", got)
	}
	if got := a.lastCode(1, 6); got != 3 {
		t.Fatalf("lastCode(f) = %d, want 3", got)
	}
	if got := a.bodyIndent(1, 6); got != "        " {
		t.Fatalf("bodyIndent(f) = %q", got)
	}
}

func TestBodyIndentEmptyBlock(t *testing.T) {
	a := parseLines("\tdef f(self):")
	if got := a.bodyIndent(0, 1); got != "\t\t" {
		t.Fatalf("bodyIndent = %q, want two tabs", got)
	}
}

func TestParseLinesResetsAtDefinition(t *testing.T) {
	a := parseLines("x = [1,\ndef f():\n    pass\ns = \"\"\"\ndef g():\n\"\"\"")
	want := []bool{false, false, false, false, true, true}
	for i, l := range a {
		if l.cont != want[i] {
			t.Fatalf("line %d %q: cont = %v, want %v", i, l.text, l.cont, want[i])
		}
	}
}

func TestInlineSuite(t *testing.T) {
	tests := []struct {
		in         string
		head, body string
		ok         bool
	}{
		{"    def construct(self): self.add(Dot())", "    def construct(self):", "self.add(Dot())", true},
		{"class GeneratedScene(Scene): pass", "class GeneratedScene(Scene):", "pass", true},
		{"def f(x={'a': 1}):  g(x)  # note", "def f(x={'a': 1}):", "g(x)  # note", true},
		{"def f(s='''a:b'''): g()", "def f(s='''a:b'''):", "g()", true},
		{"def construct(self):", "", "", false},
		{"def construct(self):  # body below", "", "", false},
		{"def f(s=\"\"\"open:", "", "", false},
		{"class GeneratedScene(Scene): ```", "", "", false},
	}
	for _, tt := range tests {
		head, body, ok := inlineSuite(tt.in)
		if head != tt.head || body != tt.body || ok != tt.ok {
			t.Fatalf("inlineSuite(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, head, body, ok, tt.head, tt.body, tt.ok)
		}
	}
}
