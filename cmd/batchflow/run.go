package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/batchflow/internal/application/orchestrator"
	"github.com/aescanero/batchflow/internal/diag"
	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stages"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

type runOptions struct {
	graphPath      string
	workflowPath   string
	outPath        string
	batchSize      int
	maxConcurrency int
	all            bool
	logLevel       string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one job over a graph file and exit",
		Long: `run loads a record-set graph, executes the job described by a YAML file
and optionally writes the resulting graph back out. The exit status is
non-zero when any batch failed or the run was interrupted.`,
		Example: "  batchflow run --graph graph.json --workflow job.yaml --out result.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := initLogger(opts.logLevel)
			defer func() { _ = logger.Sync() }()

			return runJob(ctx, opts, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.graphPath, "graph", "", "record-set JSON file to load")
	cmd.Flags().StringVar(&opts.workflowPath, "workflow", "", "YAML job file (workflow, selection, batch_size, max_concurrency)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "write the resulting graph as a record set to this file")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "override the job's batch size")
	cmd.Flags().IntVar(&opts.maxConcurrency, "max-concurrency", 0, "override the job's max concurrency")
	cmd.Flags().BoolVar(&opts.all, "all", false, "select every element instead of the job's selection")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("workflow")

	return cmd
}

// loadJobFile reads a job spec from YAML. Batch size and concurrency fall
// back to the engine defaults.
func loadJobFile(path string) (domain.JobSpec, error) {
	var spec domain.JobSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read workflow: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	if spec.BatchSize == 0 {
		spec.BatchSize = 100
	}
	if spec.MaxConcurrency == 0 {
		spec.MaxConcurrency = 25
	}
	return spec, nil
}

func runJob(ctx context.Context, opts runOptions, logger *zap.Logger, stdout io.Writer) error {
	spec, err := loadJobFile(opts.workflowPath)
	if err != nil {
		return err
	}
	if opts.batchSize > 0 {
		spec.BatchSize = opts.batchSize
	}
	if opts.maxConcurrency > 0 {
		spec.MaxConcurrency = opts.maxConcurrency
	}
	if opts.all {
		spec.Selection = domain.SelectionSpec{All: true}
	}

	store := graph.NewStore(nil)
	if _, err := loadGraphFile(ctx, store, opts.graphPath); err != nil {
		return err
	}

	registry := stages.NewRegistry()
	job := orchestrator.JobContext{
		Report:     diag.NewReport("run", logger),
		Parameters: params.FromMap(spec.Workflow.Parameters),
	}
	outcome, runErr := orchestrator.New(job, registry).Execute(ctx, store, orchestrator.SelectionFor(spec.Selection), spec.Workflow, spec.BatchSize, spec.MaxConcurrency)

	fmt.Fprintf(stdout, "%s: %s\n", outcome.Status, outcome.Message())
	for _, msg := range outcome.Messages {
		fmt.Fprintf(stdout, "  %s\n", msg)
	}

	if opts.outPath != "" && !errors.Is(runErr, orchestrator.ErrInvalidArgument) {
		if err := writeGraphFile(store, opts.outPath); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func writeGraphFile(store *graph.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := record.Encode(f, record.All(store.Snapshot())); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
