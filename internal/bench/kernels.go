package bench

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// randDense fills an r x c matrix from a uniform or standard normal source.
func randDense(rng *rand.Rand, r, c int, normal bool) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		if normal {
			data[i] = rng.NormFloat64()
		} else {
			data[i] = rng.Float64()
		}
	}
	return mat.NewDense(r, c, data)
}

// RowFFT transforms every row of m and returns the coefficients row by row.
// All rows share one plan.
func RowFFT(fft *fourier.FFT, m *mat.Dense, dst [][]complex128) [][]complex128 {
	r, _ := m.Dims()
	if len(dst) < r {
		dst = make([][]complex128, r)
	}
	for i := range r {
		dst[i] = fft.Coefficients(dst[i], m.RawRowView(i))
	}
	return dst[:r]
}

// RowDistances writes the euclidean distance between matching rows of a and b
// into dst.
func RowDistances(dst []float64, a, b *mat.Dense) []float64 {
	r, _ := a.Dims()
	if len(dst) < r {
		dst = make([]float64, r)
	}
	for i := range r {
		dst[i] = floats.Distance(a.RawRowView(i), b.RawRowView(i), 2)
	}
	return dst[:r]
}

// Option holds the inputs of a European call.
type Option struct {
	Spot, Strike, Expiry, Vol, Rate float64
}

// BlackScholes prices a European call in closed form.
func BlackScholes(o Option) float64 {
	sd := o.Vol * math.Sqrt(o.Expiry)
	d1 := (math.Log(o.Spot/o.Strike) + (o.Rate+o.Vol*o.Vol/2)*o.Expiry) / sd
	d2 := d1 - sd
	return o.Spot*distuv.UnitNormal.CDF(d1) - o.Strike*math.Exp(-o.Rate*o.Expiry)*distuv.UnitNormal.CDF(d2)
}

// Barrier describes a down-and-out call simulated on a discrete grid.
type Barrier struct {
	Option
	Level   float64
	Steps   int
	Samples int
}

// barrierShift moves a discretely monitored barrier towards the continuous
// price (Broadie, Glasserman and Kou).
const barrierShift = 0.5826

// MonteCarlo prices b by simulating geometric brownian paths. Paths that
// touch the shifted barrier pay nothing.
func MonteCarlo(rng *rand.Rand, b Barrier) float64 {
	dt := b.Expiry / float64(b.Steps)
	drift := (b.Rate - b.Vol*b.Vol/2) * dt
	diffusion := b.Vol * math.Sqrt(dt)
	level := b.Level * math.Exp(barrierShift*diffusion)
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	var payoff float64
	for range b.Samples {
		s := b.Spot
		alive := true
		for range b.Steps {
			s *= math.Exp(drift + diffusion*noise.Rand())
			if s <= level {
				alive = false
				break
			}
		}
		if alive && s > b.Strike {
			payoff += s - b.Strike
		}
	}
	return math.Exp(-b.Rate*b.Expiry) * payoff / float64(b.Samples)
}

// seedCentroids picks k rows of points with k-means++: each next centroid is
// drawn with probability proportional to its squared distance from the
// nearest centroid already chosen.
func seedCentroids(rng *rand.Rand, points *mat.Dense, k int) *mat.Dense {
	n, d := points.Dims()
	centroids := mat.NewDense(k, d, nil)
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	p := rng.IntN(n)
	for c := range k {
		if c > 0 {
			if floats.Sum(dist) > 0 {
				p = int(distuv.NewCategorical(dist, rng).Rand())
			} else {
				p = rng.IntN(n)
			}
		}
		centroids.SetRow(c, points.RawRowView(p))
		for i := range n {
			dd := floats.Distance(points.RawRowView(i), points.RawRowView(p), 2)
			dist[i] = min(dist[i], dd*dd)
		}
	}
	return centroids
}

// KMeans clusters the rows of points into k groups with Lloyd's algorithm.
// Initial centroids use k-means++ seeding drawn from rng. Iteration stops
// once no centroid moves more than tol or after maxIter rounds.
func KMeans(rng *rand.Rand, points *mat.Dense, k, maxIter int, tol float64) (*mat.Dense, []int, int) {
	n, d := points.Dims()
	k = min(k, n)
	centroids := seedCentroids(rng, points, k)

	labels := make([]int, n)
	counts := make([]int, k)
	next := mat.NewDense(k, d, nil)
	iter := 0
	for iter < maxIter {
		iter++
		for i := range n {
			p := points.RawRowView(i)
			best, bestDist := 0, math.Inf(1)
			for c := range k {
				if dist := floats.Distance(p, centroids.RawRowView(c), 2); dist < bestDist {
					best, bestDist = c, dist
				}
			}
			labels[i] = best
		}

		next.Zero()
		clear(counts)
		for i, c := range labels {
			floats.Add(next.RawRowView(c), points.RawRowView(i))
			counts[c]++
		}
		shift := 0.0
		for c := range k {
			row := next.RawRowView(c)
			if counts[c] == 0 {
				copy(row, centroids.RawRowView(c))
				continue
			}
			floats.Scale(1/float64(counts[c]), row)
			shift = max(shift, floats.Distance(row, centroids.RawRowView(c), 2))
		}
		centroids, next = next, centroids
		if shift <= tol {
			break
		}
	}
	return centroids, labels, iter
}

var sepiaWeights = mat.NewDense(3, 3, []float64{
	0.393, 0.769, 0.189,
	0.349, 0.686, 0.168,
	0.272, 0.534, 0.131,
})

// Sepia applies the sepia tone matrix to a 3 x pixels channel-major image,
// clamping each channel to [0, 1].
func Sepia(dst, img *mat.Dense) {
	dst.Mul(sepiaWeights, img)
	dst.Apply(func(_, _ int, v float64) float64 {
		return min(max(v, 0), 1)
	}, dst)
}

// Spectrogram returns the power spectrum of each hann-windowed frame of
// wave. Frames are nfft samples long and start every hop samples.
func Spectrogram(fft *fourier.FFT, wave []float64, hop int) [][]float64 {
	nfft := fft.Len()
	if len(wave) < nfft {
		return nil
	}
	frames := 1 + (len(wave)-nfft)/hop
	out := make([][]float64, frames)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	for f := range frames {
		copy(frame, wave[f*hop:f*hop+nfft])
		window.Hann(frame)
		coeffs = fft.Coefficients(coeffs, frame)
		power := make([]float64, len(coeffs))
		for i, c := range coeffs {
			power[i] = real(c)*real(c) + imag(c)*imag(c)
		}
		out[f] = power
	}
	return out
}
