package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/grapher/pkg/errors"
)

// Layout names a layout algorithm understood by the engine.
type Layout string

// Layout algorithms supported by Graphviz.
const (
	LayoutDot       Layout = "dot"       // hierarchical / layered
	LayoutNeato     Layout = "neato"     // spring model
	LayoutFdp       Layout = "fdp"       // force-directed
	LayoutSfdp      Layout = "sfdp"      // scalable force-directed
	LayoutTwopi     Layout = "twopi"     // radial
	LayoutCirco     Layout = "circo"     // circular
	LayoutOsage     Layout = "osage"     // clustered array
	LayoutPatchwork Layout = "patchwork" // squarified treemap
)

// Format names an output format understood by the engine.
type Format string

// Output formats.
const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
	FormatDOT Format = "dot" // DOT source annotated with layout positions
)

// Defaults used when no layout or format is requested.
const (
	DefaultLayout = LayoutDot
	DefaultFormat = FormatSVG
)

// AllLayouts lists every layout algorithm in a stable order.
var AllLayouts = []Layout{
	LayoutDot, LayoutNeato, LayoutFdp, LayoutSfdp,
	LayoutTwopi, LayoutCirco, LayoutOsage, LayoutPatchwork,
}

// AllFormats lists every output format in a stable order.
var AllFormats = []Format{FormatSVG, FormatPNG, FormatJPG, FormatDOT}

// Engine creates rendering contexts and advertises what it supports.
type Engine interface {
	// NewContext allocates a rendering session. Each call returns an
	// independent context; contexts must not be shared between goroutines.
	NewContext(ctx context.Context) (Context, error)

	// Layouts returns the layout algorithms this engine accepts.
	Layouts() []Layout

	// Formats returns the output formats this engine accepts.
	Formats() []Format
}

// Context is one rendering session. Graphs parsed from a context must be
// closed before the context is destroyed.
type Context interface {
	// Parse reads a textual graph description into a graph handle.
	Parse(ctx context.Context, src []byte) (Graph, error)

	// Layout computes node and edge positions for g using algorithm l.
	Layout(ctx context.Context, g Graph, l Layout) error

	// Render serializes a laid-out graph into format f.
	Render(ctx context.Context, g Graph, f Format) ([]byte, error)

	// FreeLayout releases resources held by a previous Layout call.
	FreeLayout(ctx context.Context, g Graph) error

	// CloseGraph destroys the graph handle.
	CloseGraph(g Graph) error

	// Destroy releases the session. Its error is the teardown status.
	Destroy() error
}

// Graph is an opaque handle to a parsed graph.
type Graph interface {
	// Handle returns an identifier unique within the owning context.
	Handle() int
}

// ParseLayout validates a layout name against the known set.
// Matching is case-insensitive; an empty name selects [DefaultLayout].
func ParseLayout(s string) (Layout, error) {
	if s == "" {
		return DefaultLayout, nil
	}
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(AllLayouts, l) {
		return "", errors.New(errors.ErrCodeInvalidLayout, "unknown layout %q (must be one of: %s)", s, joinLayouts(AllLayouts))
	}
	return l, nil
}

// ParseFormat validates a format name against the known set.
// Matching is case-insensitive; an empty name selects [DefaultFormat].
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return DefaultFormat, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpeg" {
		f = FormatJPG
	}
	if !slices.Contains(AllFormats, f) {
		return "", errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (must be one of: %s)", s, joinFormats(AllFormats))
	}
	return f, nil
}

// Supports reports whether e accepts both l and f.
func Supports(e Engine, l Layout, f Format) error {
	if !slices.Contains(e.Layouts(), l) {
		return errors.New(errors.ErrCodeInvalidLayout, "layout %q not supported by engine (supported: %s)", l, joinLayouts(e.Layouts()))
	}
	if !slices.Contains(e.Formats(), f) {
		return errors.New(errors.ErrCodeInvalidFormat, "format %q not supported by engine (supported: %s)", f, joinFormats(e.Formats()))
	}
	return nil
}

// ContentType returns the MIME type for rendered output in format f.
func ContentType(f Format) string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatJPG:
		return "image/jpeg"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/octet-stream"
	}
}

func joinLayouts(ls []Layout) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

func joinFormats(fs []Format) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
