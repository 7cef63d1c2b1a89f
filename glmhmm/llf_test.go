// This is a series of tests to confirm that the log-likelihood is
// non-decreasing over the EM iterations.

package glmhmm

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

const (
	niter = 20
)

// sampleCat draws from a categorical distribution.
func sampleCat(prob []float64, r *rand.Rand) int {

	u := r.Float64()
	var cum float64
	for i, p := range prob {
		cum += p
		if u < cum {
			return i
		}
	}

	return len(prob) - 1
}

// gendat simulates a GLM-HMM sequence from the given true parameters.
func gendat(n, d, c, k int, trans, weights []float64, r *rand.Rand) ([]int, []float64, []int) {

	y := make([]int, n)
	x := make([]float64, n*d)
	states := make([]int, n)
	prob := make([]float64, c)

	st := r.Intn(k)
	for t := 0; t < n; t++ {
		states[t] = st
		for j := 0; j < d; j++ {
			x[t*d+j] = 4*r.Float64() - 2
		}
		CompObs(x[t*d:(t+1)*d], weights[st*d*c:(st+1)*d*c], prob, c)
		y[t] = sampleCat(prob, r)
		st = sampleCat(trans[st*k:(st+1)*k], r)
	}

	return y, x, states
}

// stickyTrans returns a transition matrix with the given self-transition
// probability.
func stickyTrans(k int, diag float64) []float64 {

	trans := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				trans[i*k+j] = diag
			} else {
				trans[i*k+j] = (1 - diag) / float64(k-1)
			}
		}
	}

	return trans
}

// spreadWeights returns well-separated per-state weights.
func spreadWeights(k, d, c int, scale float64, r *rand.Rand) []float64 {

	weights := make([]float64, k*d*c)
	for st := 0; st < k; st++ {
		for j := 0; j < d; j++ {
			for cc := 0; cc < c-1; cc++ {
				weights[(st*d+j)*c+cc] = scale * (2*r.Float64() - 1)
			}
		}
	}

	return weights
}

func TestLLFAscending(t *testing.T) {

	for _, n := range []int{200, 500} {
		for _, k := range []int{2, 3} {
			for _, d := range []int{1, 2} {
				for _, c := range []int{2, 3} {

					r := rand.New(rand.NewSource(int64(1000*n + 100*k + 10*d + c)))
					trans := stickyTrans(k, 0.9)
					weights := spreadWeights(k, d, c, 2, r)
					y, x, _ := gendat(n, d, c, k, trans, weights, r)

					hmm := New(n, d, c, k)
					w0 := spreadWeights(k, d, c, 0.5, r)
					rslt, err := hmm.Fit(y, x, stickyTrans(k, 0.7), w0, &FitConfig{MaxIter: niter})
					if err != nil {
						t.Fatal(err)
					}

					// Check that the log-likelihood values are ascending,
					// up to floating point noise.
					for i := 1; i < rslt.Iter; i++ {
						if math.IsNaN(rslt.LogLike[i]) {
							break
						}
						if rslt.LogLike[i] < rslt.LogLike[i-1]-1e-6 {
							fmt.Printf("iter=%d\n", i)
							fmt.Printf("%f %f %f\n", rslt.LogLike[i-1], rslt.LogLike[i],
								rslt.LogLike[i-1]-rslt.LogLike[i])
							t.Fail()
						}
					}
				}
			}
		}
	}
}

func TestLLFTrace(t *testing.T) {

	n, d, c, k := 300, 1, 2, 2
	r := rand.New(rand.NewSource(5))
	trans := stickyTrans(k, 0.9)
	weights := spreadWeights(k, d, c, 2, r)
	y, x, _ := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)
	rslt, err := hmm.Fit(y, x, stickyTrans(k, 0.7), spreadWeights(k, d, c, 0.5, r), &FitConfig{MaxIter: 50})
	if err != nil {
		t.Fatal(err)
	}

	if len(rslt.LogLike) != 50 {
		t.Fatalf("trace has length %d, expected 50", len(rslt.LogLike))
	}

	// Entries beyond the final iteration are NaN.
	for i := rslt.Iter; i < len(rslt.LogLike); i++ {
		if !math.IsNaN(rslt.LogLike[i]) {
			t.Fatalf("trace entry %d should be NaN", i)
		}
	}
	for i := 0; i < rslt.Iter; i++ {
		if math.IsNaN(rslt.LogLike[i]) {
			t.Fatalf("trace entry %d should not be NaN", i)
		}
	}
}
