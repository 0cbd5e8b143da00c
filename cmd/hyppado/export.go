package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/enrich"
	"github.com/aluiziolira/hyppado-ingest/export"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/aluiziolira/hyppado-ingest/parser"
	"github.com/aluiziolira/hyppado-ingest/pipeline"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	kind       string
	rangeLabel string
	output     string
	format     string
	limit      int
	enrich     bool
}

type exportSummary struct {
	key      models.ExportKey
	rows     int
	skipped  int
	written  int64
	invalid  map[string]int
	enriched bool
	duration time.Duration
	output   string
}

func newExportCmd(a *app) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Normalize one export and write it as CSV or JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := runExport(ctx, a.cfg, opts)
			if err != nil {
				slog.Error("export failed", slog.Any("error", err))
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", string(models.KindVideos), "Record kind: videos, products, new-products or creators")
	cmd.Flags().StringVar(&opts.rangeLabel, "range", "", "Time range label such as 7d (defaults to HYPPADO_DEFAULT_RANGE)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (defaults to <kind>-<range>.<ext>)")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Output format: csv, json, or dual")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Keep only the top N records by revenue (0 keeps all)")
	cmd.Flags().BoolVar(&opts.enrich, "enrich", false, "Resolve short links and fetch thumbnails for videos")
	return cmd
}

func runExport(ctx context.Context, cfg *config.Config, opts *exportOptions) (exportSummary, error) {
	start := time.Now()

	kind, err := models.ParseKind(opts.kind)
	if err != nil {
		return exportSummary{}, err
	}
	rangeLabel := opts.rangeLabel
	if rangeLabel == "" {
		rangeLabel = cfg.DefaultRange
	}
	if !config.ValidRange(rangeLabel) {
		return exportSummary{}, fmt.Errorf("invalid range %q", rangeLabel)
	}
	format := strings.ToLower(opts.format)
	key := models.ExportKey{Kind: kind, Range: rangeLabel}

	reader := export.NewReader(cfg.ExportDir)
	if !reader.Exists(key) {
		return exportSummary{}, fmt.Errorf("export %s not found in %s", key.FileName(), cfg.ExportDir)
	}
	sheet, err := reader.ReadSheet(key)
	if err != nil {
		return exportSummary{}, err
	}
	res := parser.Normalize(sheet, kind, parser.Options{
		ReferenceTime:    time.Now(),
		NewProductWindow: cfg.NewProductWindow,
	})
	if res.Err != nil {
		return exportSummary{}, res.Err
	}

	var records []models.Record
	enriched := false
	switch kind {
	case models.KindVideos:
		videos := res.Videos
		parser.SortVideosByRevenue(videos)
		videos = topN(videos, opts.limit)
		if opts.enrich {
			videos = enrich.NewEnricher(cfg, nil).EnrichVideos(ctx, videos)
			enriched = true
		}
		records = asRecords(videos)
	case models.KindProducts, models.KindNewProducts:
		parser.SortProductsByRevenue(res.Products)
		records = asRecords(topN(res.Products, opts.limit))
	case models.KindCreators:
		parser.SortCreatorsByRevenue(res.Creators)
		records = asRecords(topN(res.Creators, opts.limit))
	}
	if len(records) == 0 {
		return exportSummary{}, fmt.Errorf("export %s has no usable rows", key)
	}
	if err := ctx.Err(); err != nil {
		return exportSummary{}, err
	}

	output := opts.output
	if output == "" {
		output = defaultOutput(key, format)
	}
	writer, err := createWriter(format, output, records[0].CSVHeader())
	if err != nil {
		return exportSummary{}, err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	// One worker keeps revenue order in the output file.
	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}
	processErr := p.Process(records...)
	if err := errors.Join(processErr, p.Close()); err != nil {
		return exportSummary{}, fmt.Errorf("write records: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return exportSummary{}, fmt.Errorf("validate output: %w", err)
	}

	metrics := p.GetMetrics()
	summary := exportSummary{
		key:      key,
		rows:     res.Len(),
		skipped:  len(res.Skipped),
		enriched: enriched,
		duration: time.Since(start),
		output:   output,
	}
	if processed, ok := metrics["processed_records"].(int64); ok {
		summary.written = processed
	}
	if invalid, ok := metrics["validation_errors"].(map[string]int); ok {
		summary.invalid = invalid
	}
	return summary, nil
}

func createWriter(format, filename string, header []string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename, header)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename, header)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func defaultOutput(key models.ExportKey, format string) string {
	if format == "json" {
		return key.String() + ".jsonl"
	}
	return key.String() + ".csv"
}

func asRecords[T models.Record](items []T) []models.Record {
	out := make([]models.Record, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func topN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func printSummary(w io.Writer, s exportSummary) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Export complete")
	fmt.Fprintf(w, "  Source:        %s\n", s.key.FileName())
	fmt.Fprintf(w, "  Rows parsed:   %d\n", s.rows)
	fmt.Fprintf(w, "  Rows skipped:  %d\n", s.skipped)
	fmt.Fprintf(w, "  Written:       %d\n", s.written)
	if len(s.invalid) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", s.invalid)
	}
	fmt.Fprintf(w, "  Enriched:      %t\n", s.enriched)
	fmt.Fprintf(w, "  Duration:      %v\n", s.duration)
	fmt.Fprintf(w, "  Output file:   %s\n", s.output)
	fmt.Fprintln(w, separator)
}
