package glmhmm

import (
	"fmt"
	"math"
	"sync"

	"github.com/schollz/progressbar"
	"gonum.org/v1/gonum/floats"
)

// FitConfig holds the optional settings of a fitting run.  The zero value
// selects the defaults: no initial state learning, 250 iterations,
// tolerance 1e-3, a single session, temperature 1, and a convergence lag
// of 5 iterations.
type FitConfig struct {

	// Initial state distribution.  Uniform if nil.  Held fixed unless
	// FitInitStates is set.
	Init []float64

	// If true, the initial state distribution is re-estimated from the
	// session-start posteriors in each M-step.
	FitInitStates bool

	// Maximum number of EM iterations
	MaxIter int

	// Tolerance for the convergence rule
	Tol float64

	// Session boundaries: a strictly increasing index sequence starting
	// at 0 and ending at NObs.  The E-step runs separately over each
	// session.  Nil treats the whole sequence as one session.
	Sessions []int

	// Temperature for deterministic-annealing EM.  The smoothed
	// posteriors are raised to this power before the M-step; values
	// below 1 flatten the posteriors early in fitting.  1 disables
	// annealing.
	Temperature float64

	// The convergence rule compares the current log-likelihood against
	// its value this many iterations earlier.
	ConvergenceLag int

	// Sigma of an optional Gaussian prior on the regression weights in
	// the per-state M-step.  Zero means no prior.
	GaussianPrior float64

	// If true, each per-state regression solve also returns the observed
	// information of its objective.
	CompHess bool
}

// FitResult holds the output of one EM run.
type FitResult struct {

	// Log-likelihood at each iteration.  The slice has length MaxIter;
	// entries beyond the final iteration are NaN.
	LogLike []float64

	// Fitted transition matrix, nstate x nstate
	Trans []float64

	// Fitted regression weights, nstate x ninput x nchoice
	Weights []float64

	// Fitted (or fixed) initial state distribution
	Init []float64

	// Smoothed state posteriors from the final E-step, nobs x nstate.
	// These were computed under the parameters entering the final
	// iteration, not the returned ones, and when Temperature != 1 they
	// are the annealed values, whose rows do not sum to one.
	Gammas []float64

	// Number of EM iterations performed
	Iter int

	// Non-nil if MaxIter was reached without satisfying the tolerance
	// rule.  The trace and parameters are still valid.
	Warning *NonConvergedWarning

	// Per-state observed information matrices, when requested
	StateHessians [][]float64
}

// posterior holds the stitched output of one E-step.
type posterior struct {
	alpha  []float64
	beta   []float64
	gammas []float64
	cs     []float64
	xisum  []float64
	llf    float64
}

// Fit estimates the GLM-HMM parameters by expectation-maximization,
// starting from the given transition matrix and weights.  The inputs are
// not modified; the fitted parameters are returned on the result.
//
// Each iteration runs the forward-backward recursions over every session,
// then re-estimates the transition matrix from the pairwise posteriors and
// the per-state weights by weighted regression.  Iteration stops when the
// log-likelihood has improved by less than the tolerance over the
// configured lag window, or at MaxIter.
func (hmm *HMM) Fit(y []int, x, trans, weights []float64, config *FitConfig) (*FitResult, error) {

	if config == nil {
		config = &FitConfig{}
	}
	maxiter := config.MaxIter
	if maxiter == 0 {
		maxiter = 250
	}
	tol := config.Tol
	if tol == 0 {
		tol = 1e-3
	}
	lag := config.ConvergenceLag
	if lag == 0 {
		lag = 5
	}
	temp := config.Temperature
	if temp == 0 {
		temp = 1
	}

	if err := hmm.checkShapes(y, x, trans, weights); err != nil {
		return nil, err
	}
	sessions, err := hmm.checkSessions(config.Sessions)
	if err != nil {
		return nil, err
	}
	init, err := hmm.checkInit(config.Init)
	if err != nil {
		return nil, err
	}

	// The fitting run owns its own parameter copies
	trans = append([]float64(nil), trans...)
	weights = append([]float64(nil), weights...)

	lls := make([]float64, maxiter)
	for i := range lls {
		lls[i] = math.NaN()
	}

	rslt := &FitResult{LogLike: lls}

	hmm.messages().Printf("Estimating model parameters...\n")
	bar := progressbar.New(maxiter)

	phi := hmm.compPhi(x, weights)
	var converged bool
	var llf float64

	for iter := 0; iter < maxiter; iter++ {
		_ = bar.Add(1)

		// E STEP
		post, err := hmm.eStep(y, trans, phi, init, sessions, temp)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		llf = post.llf
		lls[iter] = llf
		rslt.Iter = iter + 1
		rslt.Gammas = post.gammas

		// M STEP
		trans = updateTrans(post.xisum, trans, hmm.NState)
		weights, phi, rslt.StateHessians, err = hmm.updateEmissions(y, x, weights, post.gammas,
			config.GaussianPrior, config.CompHess)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		if config.FitInitStates {
			init = updateInit(post.gammas, sessions, hmm.NState)
		}

		hmm.messages().Printf("llf=%f\n", llf)

		// The comparison is against the log-likelihood several
		// iterations back, which tolerates small numerical
		// non-monotonicity at the cost of possibly stopping on a
		// plateau.
		if iter > lag && lls[iter-lag]+tol >= llf {
			hmm.messages().Printf("Converged at iteration %d\n", iter)
			converged = true
			break
		}
	}

	if !converged {
		rslt.Warning = &NonConvergedWarning{MaxIter: maxiter, LogLike: llf}
		hmm.messages().Printf("%v\n", rslt.Warning)
	}

	rslt.Trans = trans
	rslt.Weights = weights
	rslt.Init = init

	return rslt, nil
}

// eStep runs the forward-backward recursions over every session and
// stitches the results into full-length arrays.  Sessions depend only on
// their own data and the shared read-only parameters, so they run on
// independent goroutines with a join barrier before the M-step.
func (hmm *HMM) eStep(y []int, trans, phi, init []float64, sessions []int, temp float64) (*posterior, error) {

	n, k, c := hmm.NObs, hmm.NState, hmm.NChoice
	nsess := len(sessions) - 1

	post := &posterior{
		alpha:  make([]float64, n*k),
		beta:   make([]float64, n*k),
		gammas: make([]float64, n*k),
		cs:     make([]float64, n),
		xisum:  make([]float64, k*k),
	}

	lls := make([]float64, nsess)
	errs := make([]error, nsess)

	var wg sync.WaitGroup
	var mut sync.Mutex

	for s := 0; s < nsess; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()

			i0, i1 := sessions[s], sessions[s+1]
			ys := y[i0:i1]
			phis := phi[i0*k*c : i1*k*c]
			alpha := post.alpha[i0*k : i1*k]
			beta := post.beta[i0*k : i1*k]
			gamma := post.gammas[i0*k : i1*k]
			cs := post.cs[i0:i1]

			ll, err := forwardSession(ys, trans, phis, init, alpha, cs, k, c)
			if err != nil {
				errs[s] = err
				return
			}
			lls[s] = ll

			xi := make([]float64, k*k)
			backwardSession(ys, trans, phis, alpha, cs, beta, gamma, xi, k, c)

			mut.Lock()
			floats.Add(post.xisum, xi)
			mut.Unlock()
		}(s)
	}

	wg.Wait()

	for s, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", s, err)
		}
	}

	post.llf = floats.Sum(lls)

	// Deterministic-annealing reweighting of the posteriors, applied
	// after the backward pass and before the M-step.
	if temp != 1 {
		for i, v := range post.gammas {
			post.gammas[i] = math.Pow(v, temp)
		}
	}

	return post, nil
}

// updateTrans recomputes the transition matrix from the aggregated
// pairwise posteriors.  A row with no probability mass retains its
// previous value rather than dividing by zero.
func updateTrans(xisum, prev []float64, nstate int) []float64 {

	newtrans := make([]float64, nstate*nstate)

	for st := 0; st < nstate; st++ {
		row := xisum[st*nstate : (st+1)*nstate]
		if floats.Sum(row) < 1e-10 {
			copy(newtrans[st*nstate:(st+1)*nstate], prev[st*nstate:(st+1)*nstate])
			continue
		}
		copy(newtrans[st*nstate:(st+1)*nstate], row)
		normalizeSum(newtrans[st*nstate:(st+1)*nstate], 0)
	}

	return newtrans
}

// updateInit recomputes the initial state distribution from the smoothed
// posteriors at the first time point of each session.
func updateInit(gammas []float64, sessions []int, nstate int) []float64 {

	init := make([]float64, nstate)

	for s := 0; s < len(sessions)-1; s++ {
		i0 := sessions[s] * nstate
		floats.Add(init, gammas[i0:i0+nstate])
	}

	normalizeSum(init, 1/float64(nstate))
	return init
}

// checkShapes verifies that the data and parameters agree with the model
// dimensions.
func (hmm *HMM) checkShapes(y []int, x, trans, weights []float64) error {

	n, d, c, k := hmm.NObs, hmm.NInput, hmm.NChoice, hmm.NState

	if len(y) != n {
		return &ShapeMismatchError{Quantity: "y", Got: len(y), Want: n}
	}
	if len(x) != n*d {
		return &ShapeMismatchError{Quantity: "x", Got: len(x), Want: n * d}
	}
	if len(trans) != k*k {
		return &ShapeMismatchError{Quantity: "trans", Got: len(trans), Want: k * k}
	}
	if len(weights) != k*d*c {
		return &ShapeMismatchError{Quantity: "weights", Got: len(weights), Want: k * d * c}
	}
	for t, v := range y {
		if v < 0 || v >= c {
			return &ShapeMismatchError{Quantity: fmt.Sprintf("y[%d]", t), Got: v, Want: c}
		}
	}

	return nil
}

// checkSessions validates the session boundaries, defaulting to a single
// session covering the whole sequence.
func (hmm *HMM) checkSessions(sessions []int) ([]int, error) {

	if sessions == nil {
		return []int{0, hmm.NObs}, nil
	}

	if len(sessions) < 2 || sessions[0] != 0 || sessions[len(sessions)-1] != hmm.NObs {
		return nil, &ShapeMismatchError{Quantity: "sessions", Got: len(sessions), Want: hmm.NObs}
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i] <= sessions[i-1] {
			return nil, &ShapeMismatchError{Quantity: "sessions", Got: sessions[i], Want: sessions[i-1] + 1}
		}
	}

	return sessions, nil
}

// checkInit validates the initial state distribution, defaulting to
// uniform.
func (hmm *HMM) checkInit(init []float64) ([]float64, error) {

	if init == nil {
		init = make([]float64, hmm.NState)
		for i := range init {
			init[i] = 1 / float64(hmm.NState)
		}
		return init, nil
	}

	if len(init) != hmm.NState {
		return nil, &ShapeMismatchError{Quantity: "init", Got: len(init), Want: hmm.NState}
	}

	return append([]float64(nil), init...), nil
}
