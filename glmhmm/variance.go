package glmhmm

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/hyperdual"
)

// ComputeVariance returns asymptotic standard errors for the fitted
// parameters via a Laplace approximation: the Hessian of the negative
// log-likelihood is computed at the fitted point by forward-mode automatic
// differentiation, inverted, and the square roots of its diagonal
// returned.
//
// The parameters are first reduced to the model's intrinsic degrees of
// freedom: each transition row contributes its first nstate-1 entries (the
// last is fixed by the row sum), and each state's weight matrix
// contributes its first nchoice-1 category columns after shifting the last
// column to zero (a shift that leaves the emission probabilities
// unchanged).  The returned slice is ordered transition entries first,
// then weight entries, matching that flattening.
//
// ComputeVariance is independent of Fit; a failure here does not
// invalidate a completed fit.  It fails with SingularHessianError when the
// likelihood surface is flat or the model is not identifiable at the
// given point.
func (hmm *HMM) ComputeVariance(x []float64, y []int, trans, weights []float64, gaussianPrior float64) ([]float64, error) {

	if err := hmm.checkShapes(y, x, trans, weights); err != nil {
		return nil, err
	}

	d, c, k := hmm.NInput, hmm.NChoice, hmm.NState
	npar := k*(k-1) + k*d*(c-1)

	params := hmm.flattenParams(trans, weights)

	// One evaluation of the recursion per Hessian entry: seeding the
	// i-th and j-th coordinates of a hyperdual argument yields the exact
	// second partial in the cross term of the result.
	hess := mat.NewSymDense(npar, nil)
	for i := 0; i < npar; i++ {
		for j := i; j < npar; j++ {
			v, err := hmm.negLogLike(params, y, x, gaussianPrior, i, j)
			if err != nil {
				return nil, err
			}
			hess.SetSym(i, j, v.E1E2mag)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return nil, &SingularHessianError{Dim: npar}
	}

	var hinv mat.SymDense
	if err := chol.InverseTo(&hinv); err != nil {
		return nil, &SingularHessianError{Dim: npar}
	}

	se := make([]float64, npar)
	for i := 0; i < npar; i++ {
		se[i] = math.Sqrt(hinv.At(i, i))
	}

	return se, nil
}

// flattenParams maps (trans, weights) onto the unconstrained coordinate
// vector used by the variance objective.
func (hmm *HMM) flattenParams(trans, weights []float64) []float64 {

	d, c, k := hmm.NInput, hmm.NChoice, hmm.NState
	params := make([]float64, 0, k*(k-1)+k*d*(c-1))

	for st := 0; st < k; st++ {
		params = append(params, trans[st*k:st*k+k-1]...)
	}

	// Shift each state's last category column to zero; softmax is
	// invariant to a per-row shift so the emissions are unchanged.
	for st := 0; st < k; st++ {
		for j := 0; j < d; j++ {
			base := (st*d + j) * c
			last := weights[base+c-1]
			for cc := 0; cc < c-1; cc++ {
				params = append(params, weights[base+cc]-last)
			}
		}
	}

	return params
}

// negLogLike evaluates the negative log-likelihood as a pure function of
// the flattened parameter vector, on hyperdual numbers with derivative
// seeds at coordinates e1 and e2.  The full transition matrix and the
// softmax-normalized emissions are reconstructed from the flat vector;
// the forward recursion is then the same scaled recursion used during
// fitting, written without in-place mutation so that the derivative
// components propagate.
func (hmm *HMM) negLogLike(params []float64, y []int, x []float64, gaussianPrior float64, e1, e2 int) (hyperdual.Number, error) {

	n, d, c, k := hmm.NObs, hmm.NInput, hmm.NChoice, hmm.NState
	one := hyperdual.Number{Real: 1}

	p := make([]hyperdual.Number, len(params))
	for i, v := range params {
		p[i] = hyperdual.Number{Real: v}
	}
	p[e1].E1mag = 1
	p[e2].E2mag = 1

	// Reconstruct the transition matrix: the last column of each row is
	// determined by the row-sum constraint.
	tr := make([]hyperdual.Number, k*k)
	for st := 0; st < k; st++ {
		rest := one
		for j := 0; j < k-1; j++ {
			tr[st*k+j] = p[st*(k-1)+j]
			rest = hyperdual.Sub(rest, p[st*(k-1)+j])
		}
		tr[st*k+k-1] = rest
	}

	woff := k * (k - 1)
	wpar := func(st, j, cc int) hyperdual.Number {
		return p[woff+(st*d+j)*(c-1)+cc]
	}

	// emit returns P(y_t | x_t, state st): a multinomial logit with the
	// last category's log-odds fixed at zero.
	eta := make([]hyperdual.Number, c-1)
	emit := func(st, t int) hyperdual.Number {
		num := one
		norm := one
		for cc := 0; cc < c-1; cc++ {
			var u hyperdual.Number
			for j := 0; j < d; j++ {
				u = hyperdual.Add(u, hyperdual.Scale(x[t*d+j], wpar(st, j, cc)))
			}
			eta[cc] = hyperdual.Exp(u)
			norm = hyperdual.Add(norm, eta[cc])
		}
		if y[t] < c-1 {
			num = eta[y[t]]
		}
		return hyperdual.Mul(num, hyperdual.Inv(norm))
	}

	var nll hyperdual.Number
	aa := make([]hyperdual.Number, k)
	pxz := make([]hyperdual.Number, k)

	for t := 0; t < n; t++ {

		if t == 0 {
			for st := 0; st < k; st++ {
				pxz[st] = emit(st, 0)
			}
		} else {
			for st2 := 0; st2 < k; st2++ {
				var pred hyperdual.Number
				for st1 := 0; st1 < k; st1++ {
					pred = hyperdual.Add(pred, hyperdual.Mul(aa[st1], tr[st1*k+st2]))
				}
				pxz[st2] = hyperdual.Mul(emit(st2, t), pred)
			}
		}

		var cs hyperdual.Number
		for st := 0; st < k; st++ {
			cs = hyperdual.Add(cs, pxz[st])
		}
		if cs.Real <= 0 {
			return hyperdual.Number{}, &NumericalUnderflowError{Time: t}
		}

		csinv := hyperdual.Inv(cs)
		for st := 0; st < k; st++ {
			aa[st] = hyperdual.Mul(pxz[st], csinv)
		}

		nll = hyperdual.Sub(nll, hyperdual.Log(cs))
	}

	if gaussianPrior > 0 {
		var pw hyperdual.Number
		for i := woff; i < len(p); i++ {
			pw = hyperdual.Add(pw, hyperdual.Mul(p[i], p[i]))
		}
		nll = hyperdual.Add(nll, hyperdual.Scale(1/(2*gaussianPrior*gaussianPrior), pw))
	}

	return nll, nil
}
