package workflow_test

import (
	"fmt"
	"strings"

	"github.com/matzehuels/grapher/pkg/workflow"
)

func ExampleParse() {
	src := `
JOB fetch fetch.job
JOB calibrate calibrate.job
JOB archive archive.job
PARENT fetch CHILD calibrate
PARENT calibrate CHILD archive
`
	d, err := workflow.Parse(strings.NewReader(src))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	for _, e := range d.Edges() {
		fmt.Printf("%s -> %s\n", e.From, e.To)
	}
	fmt.Println("roots:", d.Roots()[0].Name)
	// Output:
	// fetch -> calibrate
	// calibrate -> archive
	// roots: fetch
}

func ExampleDAG_DOT() {
	d, _ := workflow.ParseBytes([]byte("JOB a a.job\nJOB b b.job\nPARENT a CHILD b\n"))
	fmt.Print(d.DOT())
	// Output:
	// digraph workflow {
	//   rankdir=TB;
	//   node [shape=box, style="rounded,filled", fillcolor=white];
	//
	//   "a" [label="a\na.job"];
	//   "b" [label="b\nb.job"];
	//
	//   "a" -> "b";
	// }
}
