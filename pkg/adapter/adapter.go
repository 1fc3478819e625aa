// Package adapter turns one "render this graph" request into the sequence of
// engine calls that produces an image.
//
// A render acquires a context, parses the description into a graph, lays it
// out, serializes it, and then releases layout, graph and context in reverse
// order. Releases are deferred, so they also run when an intermediate step
// fails, and each step reports its own error code.
//
//	a, err := adapter.New(graphviz.New(), adapter.WithFormat(engine.FormatPNG))
//	img, err := a.Render(ctx, []byte(`digraph { a -> b }`))
package adapter

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/grapher/pkg/engine"
	"github.com/matzehuels/grapher/pkg/errors"
)

// Adapter renders graph descriptions with a fixed layout and format.
// An Adapter holds no per-render state and is safe for concurrent use when
// its engine is; every Render gets its own engine context.
type Adapter struct {
	engine engine.Engine
	layout engine.Layout
	format engine.Format
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithLayout selects the layout algorithm. Defaults to [engine.LayoutDot].
func WithLayout(l engine.Layout) Option {
	return func(a *Adapter) { a.layout = l }
}

// WithFormat selects the output format. Defaults to [engine.FormatSVG].
func WithFormat(f engine.Format) Option {
	return func(a *Adapter) { a.format = f }
}

// New creates an adapter for e. The configured layout and format are
// checked against what e supports.
func New(e engine.Engine, opts ...Option) (*Adapter, error) {
	if e == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "engine is required")
	}
	a := &Adapter{
		engine: e,
		layout: engine.DefaultLayout,
		format: engine.DefaultFormat,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := engine.Supports(e, a.layout, a.format); err != nil {
		return nil, err
	}
	return a, nil
}

// Layout returns the configured layout algorithm.
func (a *Adapter) Layout() engine.Layout { return a.layout }

// Format returns the configured output format.
func (a *Adapter) Format() engine.Format { return a.format }

// Render lays out and serializes desc.
//
// An empty description is not an error: Render returns (nil, nil) without
// calling the engine. Otherwise the returned buffer is non-empty and owned by
// the caller. Release failures are joined into the returned error and coded
// [errors.ErrCodeTeardown] when no earlier step failed.
func (a *Adapter) Render(ctx context.Context, desc []byte) (out []byte, err error) {
	if len(desc) == 0 {
		return nil, nil
	}

	gvc, err := a.engine.NewContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContext, err, "create rendering context")
	}
	defer func() {
		if derr := gvc.Destroy(); derr != nil {
			out, err = nil, teardown(err, derr, "destroy rendering context")
		}
	}()

	g, err := gvc.Parse(ctx, desc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse graph description")
	}
	defer func() {
		if cerr := gvc.CloseGraph(g); cerr != nil {
			out, err = nil, teardown(err, cerr, "close graph")
		}
	}()

	if err := gvc.Layout(ctx, g, a.layout); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayout, err, "compute %s layout", a.layout)
	}
	defer func() {
		if ferr := gvc.FreeLayout(ctx, g); ferr != nil {
			out, err = nil, teardown(err, ferr, "free layout")
		}
	}()

	out, err = gvc.Render(ctx, g, a.format)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "render %s", a.format)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeRender, "render %s produced no output", a.format)
	}
	return out, nil
}

// teardown folds a release failure into the result of a render. An earlier
// failure keeps its code; the release error is appended to its cause chain.
func teardown(prev, cause error, msg string) error {
	rerr := errors.Wrap(errors.ErrCodeTeardown, cause, "%s", msg)
	if prev == nil {
		return rerr
	}
	var e *errors.Error
	if stderrors.As(prev, &e) {
		return &errors.Error{
			Code:    e.Code,
			Message: e.Message,
			Cause:   stderrors.Join(e.Cause, rerr),
		}
	}
	return stderrors.Join(prev, rerr)
}
