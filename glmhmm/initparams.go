package glmhmm

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// The parameter generation routines produce validly shaped, constraint
// satisfying starting values from a closed set of distribution variants.
// Each variant carries its own typed parameters and is selected by an
// exhaustive type switch; anything outside the set surfaces an
// InvalidDistributionError.

// TransPrior is a distribution over transition matrices.
type TransPrior interface {
	transPrior()
}

// DirichletTrans draws each transition row from a Dirichlet distribution
// with concentration AlphaDiag on the self-transition and AlphaOff
// elsewhere.  A large AlphaDiag favors sticky states.
type DirichletTrans struct {
	AlphaDiag float64
	AlphaOff  float64
}

// UniformTrans sets every transition probability to 1/nstate.
type UniformTrans struct{}

func (DirichletTrans) transPrior() {}
func (UniformTrans) transPrior()   {}

// WeightPrior is a distribution over regression weight tensors.
type WeightPrior interface {
	weightPrior()
}

// UniformWeights draws each weight independently from Uniform(Low, High).
type UniformWeights struct {
	Low  float64
	High float64
}

// NormalWeights draws each weight independently from N(Mu, Sigma).
type NormalWeights struct {
	Mu    float64
	Sigma float64
}

func (UniformWeights) weightPrior() {}
func (NormalWeights) weightPrior()  {}

// StatePrior is a distribution over initial state distributions.
type StatePrior interface {
	statePrior()
}

// UniformStates sets every initial state probability to 1/nstate.
type UniformStates struct{}

// DirichletStates draws the initial state distribution from a symmetric
// Dirichlet with concentration Alpha.
type DirichletStates struct {
	Alpha float64
}

func (UniformStates) statePrior()   {}
func (DirichletStates) statePrior() {}

// InitTransitions generates a nstate x nstate transition matrix with rows
// summing to one.
func InitTransitions(nstate int, prior TransPrior, src rand.Source) ([]float64, error) {

	trans := make([]float64, nstate*nstate)

	switch p := prior.(type) {
	case DirichletTrans:
		alpha := make([]float64, nstate)
		for st := 0; st < nstate; st++ {
			for j := 0; j < nstate; j++ {
				if j == st {
					alpha[j] = p.AlphaDiag
				} else {
					alpha[j] = p.AlphaOff
				}
			}
			dir := distmv.NewDirichlet(alpha, src)
			dir.Rand(trans[st*nstate : (st+1)*nstate])
		}
	case UniformTrans:
		for i := range trans {
			trans[i] = 1 / float64(nstate)
		}
	default:
		return nil, &InvalidDistributionError{Name: fmt.Sprintf("%T", prior)}
	}

	return trans, nil
}

// InitWeights generates a nstate x ninput x nchoice weight tensor.
func InitWeights(nstate, ninput, nchoice int, prior WeightPrior, src rand.Source) ([]float64, error) {

	weights := make([]float64, nstate*ninput*nchoice)

	switch p := prior.(type) {
	case UniformWeights:
		u := distuv.Uniform{Min: p.Low, Max: p.High, Src: src}
		for i := range weights {
			weights[i] = u.Rand()
		}
	case NormalWeights:
		nm := distuv.Normal{Mu: p.Mu, Sigma: p.Sigma, Src: src}
		for i := range weights {
			weights[i] = nm.Rand()
		}
	default:
		return nil, &InvalidDistributionError{Name: fmt.Sprintf("%T", prior)}
	}

	return weights, nil
}

// InitStates generates an initial state distribution summing to one.
func InitStates(nstate int, prior StatePrior, src rand.Source) ([]float64, error) {

	init := make([]float64, nstate)

	switch p := prior.(type) {
	case UniformStates:
		for i := range init {
			init[i] = 1 / float64(nstate)
		}
	case DirichletStates:
		alpha := make([]float64, nstate)
		for i := range alpha {
			alpha[i] = p.Alpha
		}
		dir := distmv.NewDirichlet(alpha, src)
		dir.Rand(init)
	default:
		return nil, &InvalidDistributionError{Name: fmt.Sprintf("%T", prior)}
	}

	return init, nil
}
