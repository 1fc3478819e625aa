package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grapher/pkg/config"
	"github.com/matzehuels/grapher/pkg/renderer"
)

// stdioPath stands for stdin as input and stdout as output.
const stdioPath = "-"

// renderOpts holds the flags shared by the render and workflow commands.
type renderOpts struct {
	output  string // output file; "-" or empty with stdin input writes to stdout
	layout  string // layout algorithm, overrides [render] layout
	format  string // output format, overrides [render] format
	noCache bool   // bypass the cache completely
	refresh bool   // re-render and overwrite the cached artifact
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render a DOT graph description",
		Long: `Render a DOT graph description to an image.

Reads from stdin when no file (or "-") is given. Without --output the image
is written next to the input file, or to stdout when reading stdin.`,
		Example: `  grapher render graph.dot
  grapher render graph.dot -l neato -f png -o graph.png
  echo 'digraph { a -> b }' | grapher render > graph.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.applyConfig(cmd, cfg)
			return c.runRender(cmd, inputArg(args), &opts, false)
		},
	}

	addRenderFlags(cmd, &opts)
	return cmd
}

func addRenderFlags(cmd *cobra.Command, opts *renderOpts) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (\"-\" for stdout)")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "layout: dot (default), neato, fdp, sfdp, twopi, circo, osage, patchwork")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), png, jpg, dot")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if the artifact is cached")
}

// applyConfig fills layout and format from the config file unless the
// corresponding flag was given.
func (o *renderOpts) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("layout") {
		o.layout = cfg.Render.Layout
	}
	if !cmd.Flags().Changed("format") {
		o.format = cfg.Render.Format
	}
}

func inputArg(args []string) string {
	if len(args) == 0 {
		return stdioPath
	}
	return args[0]
}

// runRender reads input, renders it (converting workflow files to DOT first)
// and writes the artifact.
func (c *CLI) runRender(cmd *cobra.Command, input string, opts *renderOpts, isWorkflow bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	src, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	req := renderer.Request{
		Source:  src,
		Layout:  opts.layout,
		Format:  opts.format,
		Refresh: opts.refresh,
	}
	render := runner.Render
	if isWorkflow {
		render = runner.RenderWorkflow
	}

	toStdout := opts.output == stdioPath || (opts.output == "" && input == stdioPath)
	prog := newProgress(logger)
	res, err := withSpinner(ctx, !toStdout, "Rendering "+displayName(input), func(ctx context.Context) (*renderer.Result, error) {
		return render(ctx, req)
	})
	if err != nil {
		return err
	}
	if len(res.Data) == 0 {
		printWarning("Nothing to render: %s is empty", displayName(input))
		return nil
	}

	out, err := outputPath(opts.output, input, string(res.Format))
	if err != nil {
		return err
	}
	if out == stdioPath {
		_, err := cmd.OutOrStdout().Write(res.Data)
		return err
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	prog.done(fmt.Sprintf("Rendered %s", displayName(input)))
	printSuccess("Rendered %s with %s", res.Format, res.Layout)
	printFile(out)
	printRenderStats(len(res.Data), res.Duration, res.CacheHit)
	return nil
}

// withSpinner runs fn, showing a spinner while it runs if show is set.
func withSpinner(ctx context.Context, show bool, msg string, fn func(context.Context) (*renderer.Result, error)) (*renderer.Result, error) {
	if !show {
		return fn(ctx)
	}
	s := newSpinnerWithContext(ctx, msg)
	s.Start()
	res, err := fn(ctx)
	s.Stop()
	return res, err
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdioPath {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// outputPath derives where the artifact goes. An explicit output wins; stdin
// input goes to stdout; otherwise the input's extension is replaced by the
// format's.
func outputPath(output, input, format string) (string, error) {
	if output != "" {
		return output, nil
	}
	if input == stdioPath {
		return stdioPath, nil
	}
	out := strings.TrimSuffix(input, filepath.Ext(input)) + "." + format
	if filepath.Clean(out) == filepath.Clean(input) {
		return "", fmt.Errorf("output would overwrite %s; use --output", input)
	}
	return out, nil
}

func displayName(input string) string {
	if input == stdioPath {
		return "stdin"
	}
	return filepath.Base(input)
}
