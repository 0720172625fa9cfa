package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/seqguard/internal/container"
	"github.com/roach88/seqguard/internal/guard"
	"github.com/roach88/seqguard/internal/seq"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Discipline string
	BenchConfig
}

// BenchConfig describes one load run.
type BenchConfig struct {
	Readers int           // reader goroutines
	Writers int           // writer goroutines
	Ops     int           // operations per goroutine
	Rate    float64       // total submissions per second, 0 for unlimited
	Hold    time.Duration // time spent inside each admitted operation
	Initial int           // elements seeded before the run
}

// BenchRun is the outcome of one load run.
type BenchRun struct {
	Discipline string        `json:"discipline"`
	Ops        int           `json:"ops"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	OpsPerSec  float64       `json:"ops_per_sec"`
	Violations int64         `json:"violations"`
	FinalCount int           `json:"final_count"`
	Stats      guard.Stats   `json:"stats"`
}

// BenchReport is the output of the bench command.
type BenchReport struct {
	Config BenchConfig `json:"config"`
	Runs   []BenchRun  `json:"runs"`
}

// RenderText implements TextRenderer.
func (r BenchReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "readers=%d writers=%d ops=%d rate=%g hold=%s\n\n",
		r.Config.Readers, r.Config.Writers, r.Config.Ops, r.Config.Rate, r.Config.Hold)
	for _, run := range r.Runs {
		s := run.Stats
		fmt.Fprintf(w, "%s\n", run.Discipline)
		fmt.Fprintf(w, "  elapsed:        %s (%.0f ops/s)\n", run.Elapsed.Round(time.Microsecond), run.OpsPerSec)
		fmt.Fprintf(w, "  admitted:       %d reads, %d writes\n", s.AdmittedReads, s.AdmittedWrites)
		fmt.Fprintf(w, "  immediate:      %d\n", s.Immediate)
		fmt.Fprintf(w, "  queued:         %d\n", s.Queued)
		fmt.Fprintf(w, "  max readers:    %d\n", s.MaxConcurrentReads)
		fmt.Fprintf(w, "  violations:     %d\n", run.Violations)
		fmt.Fprintf(w, "  final count:    %d\n", run.FinalCount)
	}
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent load against a container",
		Long: `Run reader and writer goroutines against one container per discipline and
report admission statistics.

Every operation checks that no write overlapped another operation; any
overlap is a violation and fails the command.

Examples:
  seqctl bench
  seqctl bench --discipline priority --readers 16 --writers 2 --hold 200us
  seqctl bench --rate 5000 --ops 2000 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Discipline, "discipline", "", "benchmark only this discipline (exclusive|priority)")
	cmd.Flags().IntVar(&opts.Readers, "readers", 8, "reader goroutines")
	cmd.Flags().IntVar(&opts.Writers, "writers", 2, "writer goroutines")
	cmd.Flags().IntVar(&opts.Ops, "ops", 500, "operations per goroutine")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "total submissions per second (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.Hold, "hold", 0, "time each operation holds its admission")
	cmd.Flags().IntVar(&opts.Initial, "initial", 1000, "elements seeded before the run")

	return cmd
}

func runBench(opts *BenchOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if opts.Readers < 0 || opts.Writers < 0 || opts.Ops < 0 || opts.Rate < 0 || opts.Initial < 0 {
		return NewExitError(ExitCommandError, "readers, writers, ops, rate and initial must not be negative")
	}

	disciplines := container.Disciplines
	if opts.Discipline != "" {
		d, err := container.ParseDiscipline(opts.Discipline)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --discipline", err)
		}
		disciplines = []container.Discipline{d}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report := BenchReport{Config: opts.BenchConfig}
	var violations int64
	for _, d := range disciplines {
		run, err := Bench(ctx, d, opts.BenchConfig, opts.logger())
		if err != nil {
			return WrapExitError(ExitCommandError, "benchmark interrupted", err)
		}
		violations += run.Violations
		report.Runs = append(report.Runs, run)
	}

	if violations > 0 {
		return out.Failure(report, CodeRunFailed, fmt.Sprintf("%d exclusion violations", violations))
	}
	return out.Success(report)
}

// Bench runs cfg's load against a fresh container under discipline d.
// Readers alternate count, element_at and filter; writers alternate append
// and remove_at(0). Returns ctx's error if ctx ends mid-run.
func Bench(ctx context.Context, d container.Discipline, cfg BenchConfig, logger *slog.Logger) (BenchRun, error) {
	initial := make([]int, cfg.Initial)
	for i := range initial {
		initial[i] = i + 1
	}
	c := container.New(container.Config[int]{
		Discipline: d,
		Initial:    initial,
		Reject:     seq.RejectZero[int](),
		Logger:     logger,
	})

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	var (
		readers, writers atomic.Int32
		violations       atomic.Int64
	)

	hold := func() {
		if cfg.Hold > 0 {
			time.Sleep(cfg.Hold)
		}
	}

	read := func(i int) error {
		return c.View(ctx, func(r seq.Reader[int]) error {
			readers.Add(1)
			defer readers.Add(-1)
			if writers.Load() != 0 {
				violations.Add(1)
			}
			switch i % 3 {
			case 0:
				_ = r.Count()
			case 1:
				if n := r.Count(); n > 0 {
					_, _ = r.ElementAt(i % n)
				}
			default:
				_ = r.Filter(func(v int) bool { return v%2 == 0 })
			}
			hold()
			return nil
		})
	}

	write := func(i int) error {
		err := c.Update(ctx, func(s seq.Sequence[int]) error {
			if writers.Add(1) != 1 || readers.Load() != 0 {
				violations.Add(1)
			}
			defer writers.Add(-1)
			hold()
			if i%2 == 0 {
				return s.Append(i + 1)
			}
			return s.RemoveAt(0)
		})
		if seq.IsOutOfBounds(err) {
			return nil
		}
		return err
	}

	worker := func(op func(int) error) error {
		for i := 0; i < cfg.Ops; i++ {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if err := op(i); err != nil {
				return err
			}
		}
		return nil
	}

	logger.Info("bench starting", "discipline", d.String(), "readers", cfg.Readers, "writers", cfg.Writers, "ops", cfg.Ops)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	start := time.Now()
	spawn := func(n int, op func(int) error) {
		for g := 0; g < n; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := worker(op); err != nil {
					errOnce.Do(func() { firstErr = err })
				}
			}()
		}
	}
	spawn(cfg.Readers, read)
	spawn(cfg.Writers, write)
	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		return BenchRun{}, firstErr
	}

	final, err := c.Count(ctx)
	if err != nil {
		return BenchRun{}, err
	}

	total := (cfg.Readers + cfg.Writers) * cfg.Ops
	run := BenchRun{
		Discipline: d.String(),
		Ops:        total,
		Elapsed:    elapsed,
		Violations: violations.Load(),
		FinalCount: final,
		Stats:      c.Stats(),
	}
	if elapsed > 0 {
		run.OpsPerSec = float64(total) / elapsed.Seconds()
	}

	logger.Info("bench finished", "discipline", run.Discipline, "elapsed", elapsed, "violations", run.Violations)
	return run, nil
}
