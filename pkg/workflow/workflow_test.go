package workflow

import (
	"strings"
	"testing"
)

const diamond = `
# processing pipeline
JOB split   split.job
JOB left    left.job
JOB right   right.job
JOB join    join.job

PARENT split CHILD left right
PARENT left right CHILD join
RETRY join 3
`

func TestParse(t *testing.T) {
	d, err := Parse(strings.NewReader(diamond))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := len(d.Jobs()); got != 4 {
		t.Errorf("len(Jobs()) = %d, want 4", got)
	}
	if got := len(d.Edges()); got != 4 {
		t.Errorf("len(Edges()) = %d, want 4", got)
	}

	join, ok := d.Job("join")
	if !ok {
		t.Fatal("Job(join) not found")
	}
	if join.Script != "join.job" {
		t.Errorf("join.Script = %q, want %q", join.Script, "join.job")
	}
	if strings.Join(join.Parents, ",") != "left,right" {
		t.Errorf("join.Parents = %v, want [left right]", join.Parents)
	}

	split, _ := d.Job("split")
	if strings.Join(split.Children, ",") != "left,right" {
		t.Errorf("split.Children = %v, want [left right]", split.Children)
	}
}

func TestRoots(t *testing.T) {
	d, err := ParseBytes([]byte("JOB a a.job\nJOB b b.job\nJOB c c.job\nPARENT a CHILD c\n"))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}

	var names []string
	for _, j := range d.Roots() {
		names = append(names, j.Name)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("Roots() = %v, want [a b]", names)
	}
}

func TestParseForwardReference(t *testing.T) {
	d, err := ParseBytes([]byte("PARENT a CHILD b\nJOB a a.job\nJOB b b.job\n"))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	if len(d.Edges()) != 1 {
		t.Errorf("len(Edges()) = %d, want 1", len(d.Edges()))
	}
}

func TestParseDuplicateEdge(t *testing.T) {
	d, err := ParseBytes([]byte("JOB a a.job\nJOB b b.job\nPARENT a CHILD b\nPARENT a CHILD b\n"))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	if len(d.Edges()) != 1 {
		t.Errorf("duplicate edge kept: %v", d.Edges())
	}
	if a, _ := d.Job("a"); len(a.Children) != 1 {
		t.Errorf("a.Children = %v, want [b]", a.Children)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short job", "JOB a\n", "JOB needs a name and a script"},
		{"duplicate job", "JOB a x\nJOB a y\n", "duplicate job"},
		{"unknown parent", "JOB b b.job\nPARENT a CHILD b\n", `unknown parent job "a"`},
		{"unknown child", "JOB a a.job\nPARENT a CHILD b\n", `unknown child job "b"`},
		{"missing child", "JOB a a.job\nPARENT a\n", "without CHILD"},
		{"missing parent", "JOB a a.job\nPARENT CHILD a\n", "without parent"},
		{"double child", "JOB a a.job\nPARENT a CHILD a CHILD a\n", "CHILD given twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.input))
			if err == nil {
				t.Fatal("ParseBytes() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestDOT(t *testing.T) {
	d, err := Parse(strings.NewReader(diamond))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	dot := d.DOT()

	for _, want := range []string{
		"digraph workflow {",
		"rankdir=TB;",
		`"split" [label="split\nsplit.job"];`,
		`"split" -> "left";`,
		`"right" -> "join";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT() missing %q:\n%s", want, dot)
		}
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT() not terminated")
	}
}

func TestDOTEmpty(t *testing.T) {
	d, err := ParseBytes(nil)
	if err != nil {
		t.Fatalf("ParseBytes(nil) error: %v", err)
	}
	if strings.Contains(d.DOT(), "->") {
		t.Error("empty workflow should have no edges")
	}
}

func TestDOTQuoting(t *testing.T) {
	tests := []struct {
		name string
		dag  string
		want []string
	}{
		{
			name: "non-ASCII",
			dag:  "JOB café café.sh\nJOB naïve n.sh\nPARENT café CHILD naïve\n",
			want: []string{
				`"café" [label="café\ncafé.sh"];`,
				`"café" -> "naïve";`,
			},
		},
		{
			name: "non-printing rune",
			dag:  "JOB a\u200bb run.sh\n",
			want: []string{"\"a\u200bb\" [label=\"a\u200bb\\nrun.sh\"];"},
		},
		{
			name: "quote and backslash",
			dag:  "JOB q\"1 say\"hi\".sh\nJOB dir\\ c:\\run.bat\nPARENT q\"1 CHILD dir\\\n",
			want: []string{
				`"q\"1" [label="q\"1\nsay\"hi\".sh"];`,
				`"dir\\" [label="dir\\\nc:\\run.bat"];`,
				`"q\"1" -> "dir\\";`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(strings.NewReader(tt.dag))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			dot := d.DOT()
			for _, want := range tt.want {
				if !strings.Contains(dot, want) {
					t.Errorf("DOT() missing %s:\n%s", want, dot)
				}
			}
			if strings.Contains(dot, `\u`) {
				t.Errorf("DOT() contains a Go unicode escape:\n%s", dot)
			}
		})
	}
}
