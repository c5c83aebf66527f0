package bench

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownKernel = errors.New("unknown kernel")
	ErrBadRange      = errors.New("invalid iteration range")
)

// Range is a half-open iteration range walked in steps, as in randrange.
type Range struct {
	Start, Stop, Step int
}

// RandomIterations picks one value of r uniformly.
func RandomIterations(rng *rand.Rand, r Range) (int, error) {
	if r.Step <= 0 || r.Stop <= r.Start {
		return 0, fmt.Errorf("%w: %+v", ErrBadRange, r)
	}
	n := (r.Stop - r.Start + r.Step - 1) / r.Step
	return r.Start + r.Step*rng.IntN(n), nil
}

// Body runs one iteration and returns a value derived from its output.
type Body func() float64

// Kernel is a named workload. Setup allocates inputs at the given scale and
// returns the body timed by the runner.
type Kernel struct {
	Name       string
	Iterations Range
	Setup      func(rng *rand.Rand, scale float64) Body
}

func scaled(base int, scale float64) int {
	return max(1, int(math.Round(float64(base)*scale)))
}

var kernels = []Kernel{
	{
		Name:       "matmul",
		Iterations: Range{20, 80, 20},
		Setup: func(rng *rand.Rand, scale float64) Body {
			n := scaled(256, scale)
			a, b := randDense(rng, n, n, true), randDense(rng, n, n, true)
			var c mat.Dense
			return func() float64 {
				c.Mul(a, b)
				return c.At(0, 0)
			}
		},
	},
	{
		Name:       "fft",
		Iterations: Range{5000, 15000, 5000},
		Setup: func(rng *rand.Rand, scale float64) Body {
			rows, n := scaled(16, scale), scaled(1024, scale)
			m := randDense(rng, rows, n, false)
			fft := fourier.NewFFT(n)
			var out [][]complex128
			return func() float64 {
				out = RowFFT(fft, m, out)
				return real(out[0][0])
			}
		},
	},
	{
		Name:       "euclidean",
		Iterations: Range{3000, 9000, 3000},
		Setup: func(rng *rand.Rand, scale float64) Body {
			n := scaled(256, scale)
			a, b := randDense(rng, n, n, false), randDense(rng, n, n, false)
			var out []float64
			return func() float64 {
				out = RowDistances(out, a, b)
				return out[0]
			}
		},
	},
	{
		Name:       "blackscholes",
		Iterations: Range{50000, 150000, 50000},
		Setup: func(*rand.Rand, float64) Body {
			o := Option{Spot: 100, Strike: 101, Expiry: 1, Vol: 0.3, Rate: 0.01}
			return func() float64 { return BlackScholes(o) }
		},
	},
	{
		Name:       "montecarlo",
		Iterations: Range{300, 900, 300},
		Setup: func(rng *rand.Rand, scale float64) Body {
			b := Barrier{
				Option:  Option{Spot: 100, Strike: 110, Expiry: 2, Vol: 0.2, Rate: 0.03},
				Level:   90,
				Steps:   scaled(100, scale),
				Samples: scaled(1000, scale),
			}
			return func() float64 { return MonteCarlo(rng, b) }
		},
	},
	{
		Name:       "kmeans",
		Iterations: Range{20, 80, 20},
		Setup: func(rng *rand.Rand, scale float64) Body {
			batch := scaled(8, scale)
			sets := make([]*mat.Dense, batch)
			for i := range sets {
				sets[i] = randDense(rng, 256, 3, true)
			}
			return func() float64 {
				var sum float64
				for _, pts := range sets {
					c, _, _ := KMeans(rng, pts, 15, 100, 1e-4)
					sum += c.At(0, 0)
				}
				return sum
			}
		},
	},
	{
		Name:       "sepia",
		Iterations: Range{150000, 450000, 1500000},
		Setup: func(rng *rand.Rand, scale float64) Body {
			side := scaled(224, math.Sqrt(scale))
			img := randDense(rng, 3, side*side, false)
			var out mat.Dense
			return func() float64 {
				out.Reset()
				Sepia(&out, img)
				return out.At(0, 0)
			}
		},
	},
	{
		Name:       "spectrogram",
		Iterations: Range{50000, 150000, 50000},
		Setup: func(rng *rand.Rand, scale float64) Body {
			channels := scaled(30, scale)
			waves := randDense(rng, channels, 16000, true)
			fft := fourier.NewFFT(400)
			return func() float64 {
				var sum float64
				for i := range channels {
					frames := Spectrogram(fft, waves.RawRowView(i), 200)
					sum += frames[0][0]
				}
				return sum
			}
		},
	},
}

// Names lists the registered kernels in run order.
func Names() []string {
	names := make([]string, len(kernels))
	for i, k := range kernels {
		names[i] = k.Name
	}
	return names
}

// Lookup returns the kernel registered under name.
func Lookup(name string) (Kernel, error) {
	i := slices.IndexFunc(kernels, func(k Kernel) bool { return k.Name == name })
	if i < 0 {
		return Kernel{}, fmt.Errorf("%w: %s", ErrUnknownKernel, name)
	}
	return kernels[i], nil
}

// Select resolves names, or every kernel when names is empty.
func Select(names []string) ([]Kernel, error) {
	if len(names) == 0 {
		return slices.Clone(kernels), nil
	}
	out := make([]Kernel, 0, len(names))
	for _, name := range names {
		k, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
