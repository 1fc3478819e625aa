// Package enginetest provides an instrumented in-memory engine for tests.
//
// [Stub] implements [engine.Engine] without any real layout or rendering. It
// counts every acquire and release call and can be told to fail any single
// step, which makes it possible to check that callers release everything they
// acquire on every path.
package enginetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matzehuels/grapher/pkg/engine"
)

// Step identifies one engine call.
type Step string

// Engine calls that can be failed with [Stub.FailOn].
const (
	StepNewContext Step = "new-context"
	StepParse      Step = "parse"
	StepLayout     Step = "layout"
	StepRender     Step = "render"
	StepFreeLayout Step = "free-layout"
	StepCloseGraph Step = "close-graph"
	StepDestroy    Step = "destroy"
)

// ErrInjected is returned by a step configured with [Stub.FailOn].
var ErrInjected = errors.New("injected failure")

// Counts records how often each acquire/release pair was called.
type Counts struct {
	ContextsCreated   int
	ContextsDestroyed int
	GraphsParsed      int
	GraphsClosed      int
	LayoutsComputed   int
	LayoutsFreed      int
	Renders           int
}

// Balanced reports whether every acquired resource was released exactly once.
func (c Counts) Balanced() bool {
	return c.ContextsCreated == c.ContextsDestroyed &&
		c.GraphsParsed == c.GraphsClosed &&
		c.LayoutsComputed == c.LayoutsFreed
}

// Stub is a counting engine. The zero value is not usable; call [New].
type Stub struct {
	mu      sync.Mutex
	counts  Counts
	fail    map[Step]error
	calls   []Step
	layouts []engine.Layout
	formats []engine.Format
}

// New returns a stub that accepts every known layout and format.
func New() *Stub {
	return &Stub{
		fail:    make(map[Step]error),
		layouts: engine.AllLayouts,
		formats: engine.AllFormats,
	}
}

// FailOn makes step return err (or [ErrInjected] when err is nil).
func (s *Stub) FailOn(step Step, err error) *Stub {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.fail[step] = err
	s.mu.Unlock()
	return s
}

// WithFormats restricts the formats the stub advertises.
func (s *Stub) WithFormats(formats ...engine.Format) *Stub {
	s.formats = formats
	return s
}

// Counts returns a snapshot of the call counters.
func (s *Stub) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Calls returns the engine calls in the order they were made.
func (s *Stub) Calls() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.calls...)
}

// Layouts implements [engine.Engine].
func (s *Stub) Layouts() []engine.Layout { return s.layouts }

// Formats implements [engine.Engine].
func (s *Stub) Formats() []engine.Format { return s.formats }

// NewContext implements [engine.Engine].
func (s *Stub) NewContext(ctx context.Context) (engine.Context, error) {
	if err := s.record(StepNewContext); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.counts.ContextsCreated++
	s.mu.Unlock()
	return &stubContext{stub: s, graphs: make(map[int]*stubGraph)}, nil
}

func (s *Stub) record(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, step)
	return s.fail[step]
}

type stubGraph struct {
	id      int
	src     []byte
	layout  engine.Layout
	laidOut bool
	closed  bool
}

func (g *stubGraph) Handle() int { return g.id }

type stubContext struct {
	stub      *Stub
	graphs    map[int]*stubGraph
	nextID    int
	destroyed bool
}

func (c *stubContext) graph(g engine.Graph) (*stubGraph, error) {
	if c.destroyed {
		return nil, errors.New("context already destroyed")
	}
	sg, ok := g.(*stubGraph)
	if !ok || c.graphs[sg.id] != sg {
		return nil, errors.New("graph does not belong to this context")
	}
	if sg.closed {
		return nil, fmt.Errorf("graph %d already closed", sg.id)
	}
	return sg, nil
}

func (c *stubContext) Parse(ctx context.Context, src []byte) (engine.Graph, error) {
	if c.destroyed {
		return nil, errors.New("context already destroyed")
	}
	if err := c.stub.record(StepParse); err != nil {
		return nil, err
	}
	if !bytes.Contains(src, []byte("{")) || !bytes.HasSuffix(bytes.TrimSpace(src), []byte("}")) {
		return nil, errors.New("syntax error: expected graph body")
	}
	c.nextID++
	g := &stubGraph{id: c.nextID, src: append([]byte(nil), src...)}
	c.graphs[g.id] = g
	c.stub.mu.Lock()
	c.stub.counts.GraphsParsed++
	c.stub.mu.Unlock()
	return g, nil
}

func (c *stubContext) Layout(ctx context.Context, g engine.Graph, l engine.Layout) error {
	sg, err := c.graph(g)
	if err != nil {
		return err
	}
	if err := c.stub.record(StepLayout); err != nil {
		return err
	}
	if sg.laidOut {
		return fmt.Errorf("graph %d already laid out", sg.id)
	}
	sg.layout = l
	sg.laidOut = true
	c.stub.mu.Lock()
	c.stub.counts.LayoutsComputed++
	c.stub.mu.Unlock()
	return nil
}

// Render returns a deterministic pseudo-document: an SVG header for svg and
// a tagged copy of the source otherwise.
func (c *stubContext) Render(ctx context.Context, g engine.Graph, f engine.Format) ([]byte, error) {
	sg, err := c.graph(g)
	if err != nil {
		return nil, err
	}
	if err := c.stub.record(StepRender); err != nil {
		return nil, err
	}
	if !sg.laidOut {
		return nil, fmt.Errorf("graph %d rendered before layout", sg.id)
	}
	c.stub.mu.Lock()
	c.stub.counts.Renders++
	c.stub.mu.Unlock()

	var buf bytes.Buffer
	switch f {
	case engine.FormatSVG:
		buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
		fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg"><!-- %s --><desc>`, sg.layout)
		buf.Write(sg.src)
		buf.WriteString("</desc></svg>\n")
	default:
		fmt.Fprintf(&buf, "%s/%s:", f, sg.layout)
		buf.Write(sg.src)
	}
	return buf.Bytes(), nil
}

func (c *stubContext) FreeLayout(ctx context.Context, g engine.Graph) error {
	sg, err := c.graph(g)
	if err != nil {
		return err
	}
	if !sg.laidOut {
		return fmt.Errorf("graph %d has no layout to free", sg.id)
	}
	sg.laidOut = false
	c.stub.mu.Lock()
	c.stub.counts.LayoutsFreed++
	c.stub.mu.Unlock()
	return c.stub.record(StepFreeLayout)
}

func (c *stubContext) CloseGraph(g engine.Graph) error {
	sg, err := c.graph(g)
	if err != nil {
		return err
	}
	sg.closed = true
	c.stub.mu.Lock()
	c.stub.counts.GraphsClosed++
	c.stub.mu.Unlock()
	return c.stub.record(StepCloseGraph)
}

// Destroy fails if any graph of this context is still open or laid out.
func (c *stubContext) Destroy() error {
	if c.destroyed {
		return errors.New("context destroyed twice")
	}
	c.destroyed = true
	c.stub.mu.Lock()
	c.stub.counts.ContextsDestroyed++
	c.stub.mu.Unlock()
	for _, g := range c.graphs {
		if !g.closed || g.laidOut {
			return fmt.Errorf("graph %d still held at teardown", g.id)
		}
	}
	return c.stub.record(StepDestroy)
}
