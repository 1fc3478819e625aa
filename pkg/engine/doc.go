// Package engine defines the capabilities grapher needs from an external
// graph layout and rendering engine.
//
// # Overview
//
// grapher never parses, lays out, or draws graphs itself. It drives an
// engine through a small set of calls that mirror the Graphviz C API:
//
//	create-context        Engine.NewContext
//	parse-from-memory     Context.Parse
//	compute-layout        Context.Layout
//	render-to-buffer      Context.Render
//	free-layout           Context.FreeLayout
//	close-graph           Context.CloseGraph
//	destroy-context       Context.Destroy
//
// Keeping the engine behind interfaces lets tests swap in the counting stub
// from [github.com/matzehuels/grapher/pkg/engine/enginetest] to check that
// every acquired resource is released exactly once.
//
// # Layouts and Formats
//
// Layout algorithms and output formats are closed enumerations. Use
// [ParseLayout] and [ParseFormat] to validate user input, and [Supports] to
// check a pair against a particular engine before rendering.
package engine
