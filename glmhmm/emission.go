package glmhmm

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// CompObs computes the emission distribution for one time point and one
// state: a multinomial-logit link mapping the input vector xt and the
// state's ninput x nchoice weight matrix to a probability vector over the
// choice categories.  The result is written into prob, which must have
// length nchoice.
func CompObs(xt, wk, prob []float64, nchoice int) {

	ninput := len(xt)

	for c := 0; c < nchoice; c++ {
		var eta float64
		for j := 0; j < ninput; j++ {
			eta += xt[j] * wk[j*nchoice+c]
		}
		prob[c] = eta
	}

	// Subtract the maximum before exponentiating; the shift does not
	// change the result due to scale invariance.
	mx := floats.Max(prob)
	var sum float64
	for c := 0; c < nchoice; c++ {
		prob[c] = math.Exp(prob[c] - mx)
		sum += prob[c]
	}
	floats.Scale(1/sum, prob)
}

// compPhi recomputes the emission probability cache for every time point
// and state from the current weights.  The result has layout
// nobs x nstate x nchoice.  phi owns no state of its own; it is derived
// from the weights and is rebuilt whenever they change.
func (hmm *HMM) compPhi(x, weights []float64) []float64 {

	n, d, c, k := hmm.NObs, hmm.NInput, hmm.NChoice, hmm.NState

	phi := make([]float64, n*k*c)
	for t := 0; t < n; t++ {
		xt := x[t*d : (t+1)*d]
		for st := 0; st < k; st++ {
			CompObs(xt, weights[st*d*c:(st+1)*d*c], phi[(t*k+st)*c:(t*k+st+1)*c], c)
		}
	}

	return phi
}

// oneHot converts integer choices to an indicator matrix with layout
// n x nchoice.
func oneHot(y []int, nchoice int) []float64 {

	yy := make([]float64, len(y)*nchoice)
	for t, v := range y {
		yy[t*nchoice+v] = 1
	}

	return yy
}

// updateEmissions performs the emission part of the M-step: for each
// latent state, refit the regression weights by weighted maximum
// likelihood with the state's posterior responsibilities as sample
// weights.  The states are independent given the posteriors, so they are
// updated concurrently; each goroutine writes only its own slices of the
// new weight and emission arrays.
func (hmm *HMM) updateEmissions(y []int, x, weights, gammas []float64, gaussianPrior float64, compHess bool) ([]float64, []float64, [][]float64, error) {

	n, d, c, k := hmm.NObs, hmm.NInput, hmm.NChoice, hmm.NState

	yy := oneHot(y, c)
	wnew := make([]float64, k*d*c)
	phi := make([]float64, n*k*c)

	var hess [][]float64
	if compHess {
		hess = make([][]float64, k)
	}

	var wg sync.WaitGroup
	errs := make([]error, k)

	for st := 0; st < k; st++ {
		wg.Add(1)
		go func(st int) {
			defer wg.Done()

			// Responsibilities for this state only
			gk := make([]float64, n)
			for t := 0; t < n; t++ {
				gk[t] = gammas[t*k+st]
			}

			wst, phist, hst, err := FitOneState(x, weights[st*d*c:(st+1)*d*c], yy, gk, gaussianPrior, compHess, d, c)
			if err != nil {
				errs[st] = err
				return
			}

			copy(wnew[st*d*c:(st+1)*d*c], wst)
			for t := 0; t < n; t++ {
				copy(phi[(t*k+st)*c:(t*k+st+1)*c], phist[t*c:(t+1)*c])
			}
			if compHess {
				hess[st] = hst
			}
		}(st)
	}

	wg.Wait()

	for st, err := range errs {
		if err != nil {
			return nil, nil, nil, fmt.Errorf("state %d: %w", st, err)
		}
	}

	return wnew, phi, hess, nil
}
