// Package bench runs numerical CPU workloads a fixed but randomly chosen
// number of times and reports their timings.
package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
)

// Recorder receives the duration of every iteration.
type Recorder interface {
	RecordKernelDuration(name string, d time.Duration)
}

type promRecorder struct{}

func (promRecorder) RecordKernelDuration(name string, d time.Duration) {
	metrics.RecordKernelDuration(name, d)
}

// Result summarises one kernel run.
type Result struct {
	Kernel       string        `json:"kernel"`
	Iterations   int           `json:"iterations"`
	Completed    int           `json:"completed"`
	Total        time.Duration `json:"-"`
	TotalSeconds float64       `json:"total_seconds"`
	MeanMs       float64       `json:"mean_ms"`
	P95Ms        float64       `json:"p95_ms"`
	PerSecond    float64       `json:"iterations_per_second"`
	Checksum     float64       `json:"checksum"`
}

// Runner executes kernels. Iterations overrides the kernel's random
// iteration count when positive. OnResult, when set, sees every result
// RunAll collects, including a partial one.
type Runner struct {
	Seed       uint64
	Scale      float64
	Iterations int
	Recorder   Recorder
	OnResult   func(Result)
}

// NewRunner returns a runner that reports to the Prometheus collectors.
func NewRunner(seed uint64, scale float64) *Runner {
	return &Runner{Seed: seed, Scale: scale, Recorder: promRecorder{}}
}

func (r *Runner) rng(k Kernel) *rand.Rand {
	var salt uint64
	for _, c := range k.Name {
		salt = salt*31 + uint64(c)
	}
	return rand.New(rand.NewPCG(r.Seed, salt))
}

// Run executes k. A cancelled context stops the run between iterations and
// returns the partial result together with the context error.
func (r *Runner) Run(ctx context.Context, k Kernel) (Result, error) {
	rng := r.rng(k)
	n := r.Iterations
	if n <= 0 {
		var err error
		if n, err = RandomIterations(rng, k.Iterations); err != nil {
			return Result{}, fmt.Errorf("%s: %w", k.Name, err)
		}
	}
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	rec := r.Recorder
	if rec == nil {
		rec = promRecorder{}
	}

	log := logger.Log.With("bench")
	log.Info("kernel starting", "kernel", k.Name, "iterations", n, "scale", scale)
	body := k.Setup(rng, scale)

	res := Result{Kernel: k.Name, Iterations: n}
	samples := make([]float64, 0, n)
	step := max(1, n/10)
	var runErr error
	for i := range n {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		start := time.Now()
		res.Checksum = body()
		d := time.Since(start)

		rec.RecordKernelDuration(k.Name, d)
		res.Total += d
		samples = append(samples, float64(d)/float64(time.Millisecond))
		res.Completed++
		if (i+1)%step == 0 && i+1 < n {
			log.Debug("kernel progress", "kernel", k.Name, "done", i+1, "of", n)
		}
	}

	res.TotalSeconds = res.Total.Seconds()
	if len(samples) > 0 {
		res.MeanMs = stat.Mean(samples, nil)
		slices.Sort(samples)
		res.P95Ms = stat.Quantile(0.95, stat.Empirical, samples, nil)
	}
	if res.Total > 0 {
		res.PerSecond = float64(res.Completed) / res.TotalSeconds
	}
	if runErr != nil {
		log.Warn("kernel interrupted", "kernel", k.Name, "completed", res.Completed, "error", runErr)
		return res, runErr
	}
	log.Info("kernel finished",
		"kernel", k.Name,
		"iterations", n,
		"total", res.Total,
		"mean_ms", res.MeanMs,
		"p95_ms", res.P95Ms,
	)
	return res, nil
}

// RunAll executes kernels in order and stops at the first error. The
// interrupted kernel's partial result is kept when it ran at all.
func (r *Runner) RunAll(ctx context.Context, kernels []Kernel) ([]Result, error) {
	results := make([]Result, 0, len(kernels))
	for _, k := range kernels {
		res, err := r.Run(ctx, k)
		if res.Kernel != "" {
			results = append(results, res)
			if r.OnResult != nil {
				r.OnResult(res)
			}
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
