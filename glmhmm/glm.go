package glmhmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// FitOneState fits the weights of one latent state by weighted maximum
// likelihood under a multinomial-logit model.  x is the n x ninput input
// matrix, winit the ninput x nchoice starting weights, yy the one-hot
// n x nchoice indicator of the observed choices, and sampleWeights the
// posterior responsibilities of this state (zero and near-zero weights are
// allowed; with no likelihood mass the weights stay at their starting
// values).  gaussianPrior is the sigma of an optional Gaussian prior on
// the weights; zero means no prior.  When compHess is true the observed
// information of the objective at the solution is also returned, in
// row-major (ninput*nchoice) x (ninput*nchoice) form.
//
// Returns the updated weights and the matching n x nchoice emission
// probabilities.  Warm starts close to the optimum are accepted even
// when the linesearcher cannot improve on them.
func FitOneState(x, winit, yy, sampleWeights []float64, gaussianPrior float64, compHess bool, ninput, nchoice int) ([]float64, []float64, []float64, error) {

	n := len(sampleWeights)
	npar := ninput * nchoice

	eta := make([]float64, nchoice)

	// Weighted negative log-likelihood, with the optional ridge penalty
	// folded into the objective.
	fn := func(w []float64) float64 {

		var f float64
		for t := 0; t < n; t++ {
			g := sampleWeights[t]
			if g == 0 {
				continue
			}

			linpred(x[t*ninput:(t+1)*ninput], w, eta, nchoice)
			lse := logSumExp(eta)
			for c := 0; c < nchoice; c++ {
				if yy[t*nchoice+c] != 0 {
					f -= g * yy[t*nchoice+c] * (eta[c] - lse)
				}
			}
		}

		if gaussianPrior > 0 {
			var pw float64
			for _, v := range w {
				pw += v * v
			}
			f += pw / (2 * gaussianPrior * gaussianPrior)
		}

		return f
	}

	grad := func(gr, w []float64) {

		zero(gr)
		prob := make([]float64, nchoice)

		for t := 0; t < n; t++ {
			g := sampleWeights[t]
			if g == 0 {
				continue
			}

			linpred(x[t*ninput:(t+1)*ninput], w, prob, nchoice)
			softmaxInPlace(prob)

			for j := 0; j < ninput; j++ {
				xv := g * x[t*ninput+j]
				for c := 0; c < nchoice; c++ {
					gr[j*nchoice+c] += xv * (prob[c] - yy[t*nchoice+c])
				}
			}
		}

		if gaussianPrior > 0 {
			s := 1 / (gaussianPrior * gaussianPrior)
			for i, v := range w {
				gr[i] += s * v
			}
		}
	}

	p := optimize.Problem{
		Func: fn,
		Grad: grad,
	}

	settings := &optimize.Settings{}
	settings.GradientThreshold = 1e-6

	start := make([]float64, npar)
	copy(start, winit)

	optrslt, err := optimize.Minimize(p, start, settings, &optimize.BFGS{})
	if err != nil {
		// A linesearch stall at a near-stationary point is not a
		// failure.  Warm starts from a previous update land close to
		// the optimum, where the common shift shared by all categories
		// leaves the linesearcher no usable descent step even though
		// the gradient is essentially zero.  Keep the iterate there.
		if !stalledAtOptimum(err, optrslt, grad, npar) {
			return nil, nil, nil, fmt.Errorf("glm fit failed: %w", err)
		}
	} else if err := optrslt.Status.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("glm fit failed: %w", err)
	}

	w := make([]float64, npar)
	copy(w, optrslt.X)

	// Recompute the emission probabilities at the solution
	phi := make([]float64, n*nchoice)
	for t := 0; t < n; t++ {
		CompObs(x[t*ninput:(t+1)*ninput], w, phi[t*nchoice:(t+1)*nchoice], nchoice)
	}

	var hess []float64
	if compHess {
		hess = glmHessian(x, phi, sampleWeights, gaussianPrior, ninput, nchoice)
	}

	return w, phi, hess, nil
}

// stalledAtOptimum reports whether the optimizer stopped with a
// linesearch failure at a point whose gradient is already negligible.
func stalledAtOptimum(err error, r *optimize.Result, grad func(gr, w []float64), npar int) bool {
	if r == nil || !errors.Is(err, optimize.ErrLinesearcherFailure) {
		return false
	}
	gr := make([]float64, npar)
	grad(gr, r.X)
	return floats.Norm(gr, math.Inf(1)) < 1e-4
}

// glmHessian computes the observed information of the weighted
// multinomial-logit objective at the fitted probabilities.
func glmHessian(x, phi, sampleWeights []float64, gaussianPrior float64, ninput, nchoice int) []float64 {

	n := len(sampleWeights)
	npar := ninput * nchoice
	hess := make([]float64, npar*npar)

	for t := 0; t < n; t++ {
		g := sampleWeights[t]
		if g == 0 {
			continue
		}
		pt := phi[t*nchoice : (t+1)*nchoice]
		for j1 := 0; j1 < ninput; j1++ {
			for j2 := 0; j2 < ninput; j2++ {
				xx := g * x[t*ninput+j1] * x[t*ninput+j2]
				for c1 := 0; c1 < nchoice; c1++ {
					for c2 := 0; c2 < nchoice; c2++ {
						v := -pt[c1] * pt[c2]
						if c1 == c2 {
							v += pt[c1]
						}
						hess[(j1*nchoice+c1)*npar+j2*nchoice+c2] += xx * v
					}
				}
			}
		}
	}

	if gaussianPrior > 0 {
		s := 1 / (gaussianPrior * gaussianPrior)
		for i := 0; i < npar; i++ {
			hess[i*npar+i] += s
		}
	}

	return hess
}

// linpred writes the linear predictor x'w for each choice into eta.
func linpred(xt, w, eta []float64, nchoice int) {
	for c := 0; c < nchoice; c++ {
		var u float64
		for j := range xt {
			u += xt[j] * w[j*nchoice+c]
		}
		eta[c] = u
	}
}

func logSumExp(eta []float64) float64 {
	mx := floats.Max(eta)
	var s float64
	for _, v := range eta {
		s += math.Exp(v - mx)
	}
	return mx + math.Log(s)
}

func softmaxInPlace(eta []float64) {
	mx := floats.Max(eta)
	var s float64
	for i, v := range eta {
		eta[i] = math.Exp(v - mx)
		s += eta[i]
	}
	floats.Scale(1/s, eta)
}
