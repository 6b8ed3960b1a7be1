package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"majjen/internal/job"
	"majjen/internal/logging"
	"majjen/internal/metrics"
	"majjen/internal/sched"
)

type runOptions struct {
	counts      []int
	pause       time.Duration
	waiter      string
	pipeLines   int
	metricsAddr string
	linger      time.Duration
	traceCSV    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo tasks until every one of them exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("waiter") {
				cfg.Waiter = opts.waiter
			}
			return runDemo(cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().IntSliceVar(&opts.counts, "count", []int{4, 3, 2}, "Add one counter task per value, counting to it")
	cmd.Flags().DurationVar(&opts.pause, "step", 250*time.Millisecond, "Cooperative sleep between counter steps")
	cmd.Flags().StringVar(&opts.waiter, "waiter", "", "Wait primitive (sleep, poll, epoll); overrides the config file")
	cmd.Flags().IntVar(&opts.pipeLines, "pipe-lines", 0, "Add a pipe writer/reader pair exchanging this many lines")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().DurationVar(&opts.linger, "linger", 0, "Keep serving metrics this long after the loop stops")
	cmd.Flags().StringVar(&opts.traceCSV, "trace-csv", "", "Write the scheduler event stream to this CSV file")

	return cmd
}

func runDemo(out io.Writer, cfg sched.Config, opts runOptions) error {
	runID := uuid.NewString()
	level := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewLogger(level, cfg.LogFormat)

	waiter, err := sched.NewWaiter(cfg.Waiter)
	if err != nil {
		return fmt.Errorf("init waiter: %w", err)
	}
	if c, ok := waiter.(io.Closer); ok {
		defer c.Close()
	}

	s := sched.New(cfg,
		sched.WithWaiter(waiter, nil),
		sched.WithLogger(logging.Sink(logger), level, runID),
	)

	var hook func(sched.Event)
	if opts.traceCSV != "" {
		trace, err := openCSVTrace(opts.traceCSV)
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer func() {
			if err := trace.Close(); err != nil {
				logger.Error().Err(err).Msg("closing trace")
			}
		}()
		hook = trace.Hook(hook)
	}

	if opts.metricsAddr != "" {
		reg := prom.NewRegistry()
		exporter, err := metrics.NewExporter("majjen", reg, prom.Labels{"run": runID})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		hook = exporter.EventHook(s, hook)

		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", opts.metricsAddr).Msg("metrics server failed")
			}
		}()
		defer func() {
			exporter.Publish(s.Metrics())
			if opts.linger > 0 {
				logger.Info().Dur("linger", opts.linger).Msg("serving final metrics")
				time.Sleep(opts.linger)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
	s.SetEventHook(hook)

	for _, n := range opts.counts {
		if _, err := s.Register(job.Counter{Out: out, Pause: opts.pause}, job.NewCounterState(n)); err != nil {
			return fmt.Errorf("add counter %d: %w", n, err)
		}
		fmt.Fprintf(out, "ADDED COUNTER COUNTING TO: %d\n", n)
	}

	if opts.pipeLines > 0 {
		writer, reader, err := job.NewPipePair(opts.pipeLines, opts.pause, out)
		if err != nil {
			return fmt.Errorf("create pipe: %w", err)
		}
		if err := registerPipePair(s, writer, reader); err != nil {
			return err
		}
	}

	logger.Info().Str("run", runID).Str("waiter", cfg.Waiter).Int("tasks", s.Len()).Msg("starting scheduler")

	runErr := s.Run()

	fmt.Fprintln(out)
	if err := metrics.WriteReport(out, s.Metrics()); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return s.Destroy()
}

// registerPipePair adds both ends of the pipe or neither. Whatever was
// already registered is cancelled, and the pipe files are closed.
func registerPipePair(s *sched.Scheduler, writer *job.PipeWriter, reader *job.PipeReader) error {
	wid, err := s.Register(writer, nil)
	if err != nil {
		_ = writer.W.Close()
		_ = reader.R.Close()
		return fmt.Errorf("add pipe writer: %w", err)
	}
	if _, err := s.Register(reader, nil); err != nil {
		// the writer's cleanup closes its end
		_ = s.Cancel(wid)
		_ = reader.R.Close()
		return fmt.Errorf("add pipe reader: %w", err)
	}
	return nil
}
