package main

import (
	"flag"
	"io"
	"log"
	"os"

	"golang.org/x/exp/rand"

	"github.com/jess-breda/glmhmm/glmhmm"
	"github.com/jess-breda/glmhmm/glmsim"
)

var (
	logger *log.Logger
)

func report(logger *log.Logger, decoded, truth []int) {

	e, n := glmhmm.CompareStates(decoded, truth)
	logger.Printf("%d/%d decoding errors\n", e, n)
}

func main() {

	gobname := flag.String("gobfile", "", "The data file")
	logname := flag.String("logname", "glmhmm", "Prefix of log file")
	maxiter := flag.Int("maxiter", 250, "Maximum number of iterations")
	tol := flag.Float64("tol", 1e-3, "Convergence tolerance")
	lag := flag.Int("lag", 5, "Convergence lag window")
	temperature := flag.Float64("temperature", 1, "Annealing temperature")
	fitinit := flag.Bool("fitinit", false, "Learn the initial state distribution")
	gaussprior := flag.Float64("gaussprior", 0, "Sigma of the Gaussian prior on the weights")
	variance := flag.Bool("variance", false, "Compute Laplace standard errors after fitting")
	seed := flag.Uint64("seed", 23, "Random seed for the starting parameters")
	flag.Parse()

	if *gobname == "" {
		_, _ = io.WriteString(os.Stderr, "'gobfile' is a required argument\n")
		os.Exit(1)
	}

	ds, err := glmsim.ReadDataset(*gobname)
	if err != nil {
		panic(err)
	}

	hmm := glmhmm.New(ds.NObs, ds.NInput, ds.NChoice, ds.NState)
	logger = hmm.SetLogger(*logname)

	src := rand.NewSource(*seed)

	trans, err := glmhmm.InitTransitions(ds.NState, glmhmm.DirichletTrans{AlphaDiag: 5, AlphaOff: 1}, src)
	if err != nil {
		panic(err)
	}

	weights, err := glmhmm.InitWeights(ds.NState, ds.NInput, ds.NChoice, glmhmm.UniformWeights{Low: -1, High: 1}, src)
	if err != nil {
		panic(err)
	}

	hmm.WriteSummary(ds.Trans, ds.Weights, ds.Init, nil, "True parameters:")
	hmm.WriteSummary(trans, weights, nil, nil, "Starting values:")

	config := &glmhmm.FitConfig{
		FitInitStates:  *fitinit,
		MaxIter:        *maxiter,
		Tol:            *tol,
		ConvergenceLag: *lag,
		Temperature:    *temperature,
		Sessions:       ds.Sessions,
		GaussianPrior:  *gaussprior,
	}

	rslt, err := hmm.Fit(ds.Y, ds.X, trans, weights, config)
	if err != nil {
		logger.Printf("%v\n", err)
		os.Exit(1)
	}

	hmm.WriteSummary(rslt.Trans, rslt.Weights, rslt.Init, nil, "Estimated parameters:")

	llf, err := hmm.LogLike(ds.Y, ds.X, rslt.Trans, rslt.Weights, rslt.Init, ds.Sessions)
	if err != nil {
		panic(err)
	}
	logger.Printf("Final log-likelihood: %f", llf)

	// Reconstruct the state sequence and compare to the truth
	decoded, err := hmm.Decode(ds.Y, ds.X, rslt.Trans, rslt.Weights, rslt.Init, ds.Sessions)
	if err != nil {
		panic(err)
	}
	report(logger, decoded, ds.States)

	if *variance {
		se, err := hmm.ComputeVariance(ds.X, ds.Y, rslt.Trans, rslt.Weights, *gaussprior)
		if err != nil {
			logger.Printf("Variance estimation failed: %v\n", err)
			return
		}
		logger.Printf("Standard errors: %v\n", se)
	}
}
