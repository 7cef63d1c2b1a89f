package glmhmm

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// forwardSession runs the scaled forward (filtering) recursion over one
// session of data.  y is the session's observation slice, phi the matching
// block of emission probabilities (len(y) x nstate x nchoice), and init the
// initial state distribution.  The filtered state probabilities are written
// into alpha (len(y) x nstate) and the per-step normalizers into cs.  The
// return value is the session log-likelihood, sum(log cs).
//
// Each normalizer cs[t] equals P(y_t | y_1..y_{t-1}, x_1..x_t); a zero
// normalizer means no state can produce the observed choice and the
// recursion cannot continue.
func forwardSession(y []int, trans, phi, init, alpha, cs []float64, nstate, nchoice int) (float64, error) {

	var llf float64
	joint := make([]float64, nstate)

	for t := 0; t < len(y); t++ {

		j1 := t * nstate

		if t == 0 {
			for st := 0; st < nstate; st++ {
				joint[st] = phi[st*nchoice+y[0]] * init[st]
			}
		} else {
			j0 := j1 - nstate
			for st2 := 0; st2 < nstate; st2++ {
				// Propagate uncertainty forward through the chain
				var pred float64
				for st1 := 0; st1 < nstate; st1++ {
					pred += alpha[j0+st1] * trans[st1*nstate+st2]
				}
				joint[st2] = phi[(t*nstate+st2)*nchoice+y[t]] * pred
			}
		}

		cs[t] = floats.Sum(joint)
		if cs[t] == 0 {
			return 0, &NumericalUnderflowError{Time: t}
		}

		for st := 0; st < nstate; st++ {
			alpha[j1+st] = joint[st] / cs[t]
		}
		llf += math.Log(cs[t])
	}

	return llf, nil
}

// backwardSession runs the scaled backward recursion over one session,
// using the alpha and cs values produced by forwardSession.  The smoothed
// state posteriors are written into gamma (each row sums to one because
// alpha and beta share the same scaling), and the expected transition
// counts are accumulated into xisum (nstate x nstate).
func backwardSession(y []int, trans, phi, alpha, cs, beta, gamma, xisum []float64, nstate, nchoice int) {

	nt := len(y)

	// Terminal condition
	j1 := (nt - 1) * nstate
	for st := 0; st < nstate; st++ {
		beta[j1+st] = 1
		gamma[j1+st] = alpha[j1+st]
	}

	for t := nt - 2; t >= 0; t-- {

		j0 := t * nstate
		j1 := j0 + nstate

		for st1 := 0; st1 < nstate; st1++ {
			var u float64
			for st2 := 0; st2 < nstate; st2++ {
				u += trans[st1*nstate+st2] * phi[((t+1)*nstate+st2)*nchoice+y[t+1]] * beta[j1+st2]
			}
			beta[j0+st1] = u / cs[t+1]
			gamma[j0+st1] = alpha[j0+st1] * beta[j0+st1]
		}

		// Pairwise posterior: expected count of st1 -> st2 transitions
		// between t and t+1.  The shared scaling of alpha and beta makes
		// each term a probability already.
		for st1 := 0; st1 < nstate; st1++ {
			a := alpha[j0+st1]
			for st2 := 0; st2 < nstate; st2++ {
				xisum[st1*nstate+st2] += a * trans[st1*nstate+st2] *
					phi[((t+1)*nstate+st2)*nchoice+y[t+1]] * beta[j1+st2] / cs[t+1]
			}
		}
	}
}

// LogLike returns the log-likelihood of the data at fixed parameter values,
// without updating any parameters.  Sessions are evaluated independently
// and their log-likelihoods summed; a nil sessions slice treats the whole
// sequence as one session.
func (hmm *HMM) LogLike(y []int, x, trans, weights, init []float64, sessions []int) (float64, error) {

	if err := hmm.checkShapes(y, x, trans, weights); err != nil {
		return 0, err
	}
	sessions, err := hmm.checkSessions(sessions)
	if err != nil {
		return 0, err
	}
	init, err = hmm.checkInit(init)
	if err != nil {
		return 0, err
	}

	phi := hmm.compPhi(x, weights)

	nstate, nchoice := hmm.NState, hmm.NChoice
	var llf float64
	for s := 0; s < len(sessions)-1; s++ {
		i0, i1 := sessions[s], sessions[s+1]
		alpha := make([]float64, (i1-i0)*nstate)
		cs := make([]float64, i1-i0)
		ll, err := forwardSession(y[i0:i1], trans, phi[i0*nstate*nchoice:i1*nstate*nchoice],
			init, alpha, cs, nstate, nchoice)
		if err != nil {
			return 0, err
		}
		llf += ll
	}

	return llf, nil
}
