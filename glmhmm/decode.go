package glmhmm

import (
	"math"
)

// Decode uses the Viterbi algorithm to reconstruct the most probable state
// sequence under the given parameters.  The algorithm is run separately
// for each session.
func (hmm *HMM) Decode(y []int, x, trans, weights, init []float64, sessions []int) ([]int, error) {

	if err := hmm.checkShapes(y, x, trans, weights); err != nil {
		return nil, err
	}
	sessions, err := hmm.checkSessions(sessions)
	if err != nil {
		return nil, err
	}
	init, err = hmm.checkInit(init)
	if err != nil {
		return nil, err
	}

	phi := hmm.compPhi(x, weights)

	k, c := hmm.NState, hmm.NChoice
	state := make([]int, hmm.NObs)

	for s := 0; s < len(sessions)-1; s++ {
		i0, i1 := sessions[s], sessions[s+1]
		hmm.decodeSession(y[i0:i1], phi[i0*k*c:i1*k*c], trans, init, state[i0:i1])
	}

	return state, nil
}

// decodeSession reconstructs the state sequence for one session.
func (hmm *HMM) decodeSession(y []int, phi, trans, init []float64, state []int) {

	k, c := hmm.NState, hmm.NChoice
	nt := len(y)

	// Construct the table of conditional probabilities on the log scale
	lpr := make([]float64, nt*k)
	lpt := make([]int, nt*k)
	wk := make([]float64, k)

	for st := 0; st < k; st++ {
		lpr[st] = math.Log(phi[st*c+y[0]]) + math.Log(init[st])
	}

	for t := 1; t < nt; t++ {
		j0 := (t - 1) * k
		j1 := t * k

		// From st1 at t-1 to st2 at t
		for st2 := 0; st2 < k; st2++ {
			for st1 := 0; st1 < k; st1++ {
				wk[st1] = lpr[j0+st1] + math.Log(trans[st1*k+st2])
			}

			// The best previous state
			jj := argmax(wk)
			lpt[j1+st2] = jj
			lpr[j1+st2] = wk[jj] + math.Log(phi[(t*k+st2)*c+y[t]])
		}
	}

	// Traceback
	state[nt-1] = argmax(lpr[(nt-1)*k : nt*k])
	for t := nt - 2; t >= 0; t-- {
		state[t] = lpt[(t+1)*k+state[t+1]]
	}
}
