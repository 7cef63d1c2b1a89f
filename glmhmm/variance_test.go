package glmhmm

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// On a well-conditioned synthetic fit the Laplace approximation returns
// finite, non-negative standard errors for every free parameter.
func TestComputeVariance(t *testing.T) {

	n, d, c, k := 600, 1, 2, 2
	r := rand.New(rand.NewSource(43))
	trans := stickyTrans(k, 0.9)
	weights := []float64{
		0, 2.5,
		0, -2.5,
	}
	y, x, _ := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)
	rslt, err := hmm.Fit(y, x, stickyTrans(k, 0.75), spreadWeights(k, d, c, 0.5, r),
		&FitConfig{MaxIter: 60, Tol: 1e-4})
	if err != nil {
		t.Fatal(err)
	}

	se, err := hmm.ComputeVariance(x, y, rslt.Trans, rslt.Weights, 0)
	if err != nil {
		t.Fatal(err)
	}

	npar := k*(k-1) + k*d*(c-1)
	if len(se) != npar {
		t.Fatalf("got %d standard errors, expected %d", len(se), npar)
	}
	for i, v := range se {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Fatalf("standard error %d is %f", i, v)
		}
	}
}

// With far more parameters than observations the likelihood surface is
// degenerate and the Hessian cannot be inverted.
func TestComputeVarianceSingular(t *testing.T) {

	n, d, c, k := 2, 1, 2, 5
	r := rand.New(rand.NewSource(47))
	trans := stickyTrans(k, 0.6)
	weights := spreadWeights(k, d, c, 1, r)
	y, x, _ := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)
	_, err := hmm.ComputeVariance(x, y, trans, weights, 0)

	var herr *SingularHessianError
	if !errors.As(err, &herr) {
		t.Fatalf("expected SingularHessianError, got %v", err)
	}
}

// The Gaussian prior adds curvature, so the penalized standard errors of
// the weight parameters cannot exceed the unpenalized ones.
func TestComputeVariancePrior(t *testing.T) {

	n, d, c, k := 500, 1, 2, 2
	r := rand.New(rand.NewSource(53))
	trans := stickyTrans(k, 0.9)
	weights := []float64{
		0, 2,
		0, -2,
	}
	y, x, _ := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)
	rslt, err := hmm.Fit(y, x, stickyTrans(k, 0.75), spreadWeights(k, d, c, 0.5, r),
		&FitConfig{MaxIter: 60, Tol: 1e-4})
	if err != nil {
		t.Fatal(err)
	}

	seFree, err := hmm.ComputeVariance(x, y, rslt.Trans, rslt.Weights, 0)
	if err != nil {
		t.Fatal(err)
	}
	sePen, err := hmm.ComputeVariance(x, y, rslt.Trans, rslt.Weights, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	woff := k * (k - 1)
	for i := woff; i < len(seFree); i++ {
		if sePen[i] > seFree[i]+1e-8 {
			t.Fatalf("penalized SE %f exceeds unpenalized %f at %d", sePen[i], seFree[i], i)
		}
	}
}

// The flattening drops the constrained coordinates: the reconstruction
// inside the objective must reproduce the log-likelihood computed by the
// fitting-path forward pass.  The objective leaves the initial
// distribution out of the recursion, so the two values differ by exactly
// log(nstate).
func TestVarianceObjectiveAgreement(t *testing.T) {

	n, d, c, k := 120, 2, 3, 2
	r := rand.New(rand.NewSource(59))
	trans := stickyTrans(k, 0.85)
	weights := spreadWeights(k, d, c, 1.5, r)
	y, x, _ := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)

	params := hmm.flattenParams(trans, weights)
	v, err := hmm.negLogLike(params, y, x, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	llf, err := hmm.LogLike(y, x, trans, weights, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(v.Real+llf+math.Log(float64(k))) > 1e-8 {
		t.Fatalf("objective %f does not match -loglike %f", v.Real, -llf)
	}
}
