// Package workflow reads workflow DAG files and converts them to DOT.
//
// A DAG file declares jobs and their dependencies, one statement per line:
//
//	JOB    <name> <script>
//	PARENT <name>... CHILD <name>...
//
// Every parent listed on a PARENT line gets an edge to every child listed
// after CHILD. Blank lines and lines starting with # are ignored, as are
// statements with other keywords (VARS, RETRY, ...), which only matter to
// the scheduler.
package workflow

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Job is a node of the workflow.
type Job struct {
	Name     string
	Script   string
	Parents  []string
	Children []string
}

// Edge is a parent → child dependency.
type Edge struct {
	From string
	To   string
}

// DAG is a parsed workflow. Jobs and edges keep declaration order.
type DAG struct {
	jobs  []*Job
	index map[string]*Job
	edges []Edge
	seen  map[Edge]bool
}

// Parse reads a DAG file.
func Parse(r io.Reader) (*DAG, error) {
	d := &DAG{index: make(map[string]*Job), seen: make(map[Edge]bool)}

	type relation struct {
		line     int
		parents  []string
		children []string
	}
	var relations []relation

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch strings.ToUpper(fields[0]) {
		case "JOB":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: JOB needs a name and a script", lineNo)
			}
			name := fields[1]
			if _, dup := d.index[name]; dup {
				return nil, fmt.Errorf("line %d: duplicate job %q", lineNo, name)
			}
			j := &Job{Name: name, Script: fields[2]}
			d.jobs = append(d.jobs, j)
			d.index[name] = j

		case "PARENT":
			rel, err := splitRelation(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			relations = append(relations, relation{line: lineNo, parents: rel[0], children: rel[1]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dag: %w", err)
	}

	// Relations may reference jobs declared further down the file.
	for _, rel := range relations {
		for _, p := range rel.parents {
			if _, ok := d.index[p]; !ok {
				return nil, fmt.Errorf("line %d: unknown parent job %q", rel.line, p)
			}
			for _, c := range rel.children {
				if _, ok := d.index[c]; !ok {
					return nil, fmt.Errorf("line %d: unknown child job %q", rel.line, c)
				}
				d.addEdge(p, c)
			}
		}
	}
	return d, nil
}

// ParseBytes is a convenience wrapper around [Parse].
func ParseBytes(data []byte) (*DAG, error) {
	return Parse(bytes.NewReader(data))
}

func splitRelation(fields []string) ([2][]string, error) {
	var rel [2][]string
	side := 0
	for _, f := range fields {
		if strings.EqualFold(f, "CHILD") {
			if side == 1 {
				return rel, fmt.Errorf("CHILD given twice")
			}
			side = 1
			continue
		}
		rel[side] = append(rel[side], f)
	}
	if len(rel[0]) == 0 {
		return rel, fmt.Errorf("PARENT without parent jobs")
	}
	if side == 0 || len(rel[1]) == 0 {
		return rel, fmt.Errorf("PARENT without CHILD jobs")
	}
	return rel, nil
}

func (d *DAG) addEdge(from, to string) {
	e := Edge{From: from, To: to}
	if d.seen[e] {
		return
	}
	d.seen[e] = true
	d.edges = append(d.edges, e)
	d.index[from].Children = append(d.index[from].Children, to)
	d.index[to].Parents = append(d.index[to].Parents, from)
}

// Jobs returns all jobs in declaration order.
func (d *DAG) Jobs() []*Job { return d.jobs }

// Edges returns all dependencies in declaration order.
func (d *DAG) Edges() []Edge { return d.edges }

// Job looks up a job by name.
func (d *DAG) Job(name string) (*Job, bool) {
	j, ok := d.index[name]
	return j, ok
}

// Roots returns the jobs without parents.
func (d *DAG) Roots() []*Job {
	var roots []*Job
	for _, j := range d.jobs {
		if len(j.Parents) == 0 {
			roots = append(roots, j)
		}
	}
	return roots
}

// DOT converts the workflow into a top-to-bottom Graphviz digraph with one
// box per job, labelled with the job name and its script.
func (d *DAG) DOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph workflow {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, j := range d.jobs {
		fmt.Fprintf(&buf, "  %s [label=\"%s\\n%s\"];\n", quoteID(j.Name), escapeID(j.Name), escapeID(j.Script))
	}

	if len(d.edges) > 0 {
		buf.WriteString("\n")
	}
	for _, e := range d.edges {
		fmt.Fprintf(&buf, "  %s -> %s;\n", quoteID(e.From), quoteID(e.To))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// quoteID returns s as a double-quoted DOT ID.
func quoteID(s string) string {
	return `"` + escapeID(s) + `"`
}

// escapeID escapes s for use between DOT double quotes. Only the quote and
// the backslash are special there; any other rune, including non-ASCII and
// non-printing ones, is written as is.
func escapeID(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
