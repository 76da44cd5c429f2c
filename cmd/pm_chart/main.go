// Command pm_chart renders a particulate-matter chart for a page URL or query string.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcauberer/particulate-matter-api/internal/chart"
	"github.com/marcauberer/particulate-matter-api/internal/chartdata"
	"github.com/marcauberer/particulate-matter-api/internal/config"
	"github.com/marcauberer/particulate-matter-api/internal/params"
	"github.com/marcauberer/particulate-matter-api/internal/viewer"
)

type options struct {
	backend    string
	format     string
	outputPath string
	labelsFile string
	timeout    time.Duration
	pretty     bool
}

func main() {
	if err := newRootCmd(config.LoadCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.CLI) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "pm_chart [page-url-or-query]",
		Short: "Render a particulate matter chart",
		Long: `pm_chart parses the query of a chart page URL, forwards it to the backend
data/chart endpoint and renders the returned series as HTML, PNG or JSON.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			return run(cmd.Context(), cmd.OutOrStdout(), opts, target)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", cfg.BackendURL, "Backend base URL (env PMCHART_BACKEND_URL)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "html", "Output format: html, png, json, params")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&opts.labelsFile, "labels", cfg.LabelsFile, "YAML file overriding chart labels")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Duration(cfg.RequestTimeoutMS)*time.Millisecond, "Backend request timeout")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cliLevel(cfg.LogLevel)})))
	return cmd
}

func run(ctx context.Context, stdout io.Writer, opts *options, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.format == "params" {
		p, err := params.FromURL(target)
		if err != nil {
			return fmt.Errorf("parse page url: %w", err)
		}
		return writeJSON(stdout, opts, struct {
			Params         params.Params `json:"params"`
			ForwardedQuery string        `json:"forwarded_query"`
		}{p, params.Encode(p)})
	}

	rawQuery, err := params.QueryOf(target)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}

	labels, err := chart.LoadLabels(opts.labelsFile)
	if err != nil {
		return err
	}
	if opts.backend == "" {
		return fmt.Errorf("missing --backend (or PMCHART_BACKEND_URL)")
	}
	svc := viewer.NewService(viewer.Deps{
		Fetcher: chartdata.NewClient(opts.backend, &http.Client{}, opts.timeout),
		Labels:  labels,
	})

	var out []byte
	switch opts.format {
	case "html":
		out, _, err = svc.RenderHTML(ctx, rawQuery)
	case "png":
		out, _, err = svc.RenderPNG(ctx, rawQuery)
	case "json":
		var view viewer.View
		view, err = svc.Resolve(ctx, rawQuery)
		if err == nil {
			return writeJSON(stdout, opts, view)
		}
	default:
		return fmt.Errorf("invalid format: %s (must be html, png, json or params)", opts.format)
	}
	if err != nil {
		return err
	}
	return writeOutput(stdout, opts.outputPath, out)
}

func writeJSON(stdout io.Writer, opts *options, v any) error {
	var (
		data []byte
		err  error
	)
	if opts.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return writeOutput(stdout, opts.outputPath, append(data, '\n'))
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	_, err := stdout.Write(data)
	return err
}

func cliLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
