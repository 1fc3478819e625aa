// Package graphviz implements [engine.Engine] on top of Graphviz.
//
// It uses [github.com/goccy/go-graphviz], which embeds Graphviz compiled to
// WebAssembly, so no system Graphviz installation or cgo toolchain is needed.
// Each [engine.Context] method maps onto one call of the gvc/cgraph API:
// Parse to cgraph.ParseBytes, Layout to gvLayout, Render to gvRenderData,
// FreeLayout to gvFreeLayout, CloseGraph to agclose and Destroy to
// gvFreeContext.
package graphviz

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-graphviz/cgraph"
	"github.com/goccy/go-graphviz/gvc"

	"github.com/matzehuels/grapher/pkg/engine"
)

// wasmMu serializes access to the embedded Graphviz runtime, which is not
// safe for concurrent use.
var wasmMu sync.Mutex

// Engine is the Graphviz-backed engine. It is safe for concurrent use; the
// contexts it creates are not.
type Engine struct{}

// New returns a Graphviz engine.
func New() *Engine {
	return &Engine{}
}

// Layouts implements [engine.Engine].
func (e *Engine) Layouts() []engine.Layout {
	return engine.AllLayouts
}

// Formats implements [engine.Engine].
func (e *Engine) Formats() []engine.Format {
	return engine.AllFormats
}

// NewContext implements [engine.Engine].
func (e *Engine) NewContext(ctx context.Context) (engine.Context, error) {
	wasmMu.Lock()
	defer wasmMu.Unlock()

	gv, err := gvc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	return &gvContext{gv: gv, graphs: make(map[int]*gvGraph)}, nil
}

type gvGraph struct {
	id      int
	g       *cgraph.Graph
	laidOut bool
}

func (g *gvGraph) Handle() int { return g.id }

type gvContext struct {
	gv     *gvc.Context
	graphs map[int]*gvGraph
	nextID int
}

func (c *gvContext) lookup(g engine.Graph) (*gvGraph, error) {
	if c.gv == nil {
		return nil, fmt.Errorf("context destroyed")
	}
	gg, ok := g.(*gvGraph)
	if !ok || c.graphs[gg.id] != gg {
		return nil, fmt.Errorf("graph handle not owned by this context")
	}
	return gg, nil
}

func (c *gvContext) Parse(ctx context.Context, src []byte) (engine.Graph, error) {
	if c.gv == nil {
		return nil, fmt.Errorf("context destroyed")
	}
	wasmMu.Lock()
	defer wasmMu.Unlock()

	g, err := cgraph.ParseBytes(src)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("no graph in description")
	}
	c.nextID++
	gg := &gvGraph{id: c.nextID, g: g}
	c.graphs[gg.id] = gg
	return gg, nil
}

// Layout runs the named layout algorithm. An algorithm Graphviz does not
// know fails here, not at render time.
func (c *gvContext) Layout(ctx context.Context, g engine.Graph, l engine.Layout) error {
	gg, err := c.lookup(g)
	if err != nil {
		return err
	}
	if gg.laidOut {
		return fmt.Errorf("graph already laid out")
	}

	wasmMu.Lock()
	defer wasmMu.Unlock()

	if err := c.gv.Layout(ctx, gg.g, string(l)); err != nil {
		return fmt.Errorf("layout %q: %w", l, err)
	}
	gg.laidOut = true
	return nil
}

func (c *gvContext) Render(ctx context.Context, g engine.Graph, f engine.Format) ([]byte, error) {
	gg, err := c.lookup(g)
	if err != nil {
		return nil, err
	}
	if !gg.laidOut {
		return nil, fmt.Errorf("graph rendered before layout")
	}

	wasmMu.Lock()
	defer wasmMu.Unlock()

	var buf bytes.Buffer
	if err := c.gv.RenderData(ctx, gg.g, string(f), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FreeLayout releases the layout data attached to g. Freeing a graph that
// has no layout is a no-op.
func (c *gvContext) FreeLayout(ctx context.Context, g engine.Graph) error {
	gg, err := c.lookup(g)
	if err != nil {
		return err
	}
	if !gg.laidOut {
		return nil
	}

	wasmMu.Lock()
	defer wasmMu.Unlock()

	gg.laidOut = false
	return c.gv.FreeLayout(ctx, gg.g)
}

func (c *gvContext) CloseGraph(g engine.Graph) error {
	gg, err := c.lookup(g)
	if err != nil {
		return err
	}
	delete(c.graphs, gg.id)

	wasmMu.Lock()
	defer wasmMu.Unlock()

	if gg.laidOut {
		gg.laidOut = false
		if err := c.gv.FreeLayout(context.Background(), gg.g); err != nil {
			_ = gg.g.Close()
			return err
		}
	}
	return gg.g.Close()
}

// Destroy frees the Graphviz context. Graphs still open are released first
// and reported in the returned error.
func (c *gvContext) Destroy() error {
	if c.gv == nil {
		return fmt.Errorf("context destroyed twice")
	}

	wasmMu.Lock()
	defer wasmMu.Unlock()

	leaked := len(c.graphs)
	for id, gg := range c.graphs {
		if gg.laidOut {
			_ = c.gv.FreeLayout(context.Background(), gg.g)
		}
		_ = gg.g.Close()
		delete(c.graphs, id)
	}
	err := c.gv.Close()
	c.gv = nil
	if err != nil {
		return err
	}
	if leaked > 0 {
		return fmt.Errorf("%d graph(s) still open at teardown", leaked)
	}
	return nil
}
