package main

import (
	"flag"
	"io"
	"os"

	"golang.org/x/exp/rand"

	"github.com/jess-breda/glmhmm/glmhmm"
	"github.com/jess-breda/glmhmm/glmsim"
)

func main() {

	var outname string
	flag.StringVar(&outname, "outname", "", "Output file name")

	var nobs, ninput, nchoice, nstate, nsession int
	flag.IntVar(&nobs, "nobs", 0, "Number of time points")
	flag.IntVar(&ninput, "ninput", 0, "Number of input covariates")
	flag.IntVar(&nchoice, "nchoice", 0, "Number of choice categories")
	flag.IntVar(&nstate, "nstate", 0, "Number of latent states")
	flag.IntVar(&nsession, "nsession", 1, "Number of equal-length sessions")

	var alphadiag, alphaoff, wlow, whigh, inlow, inhigh float64
	flag.Float64Var(&alphadiag, "alphadiag", 5, "Dirichlet concentration on self-transitions")
	flag.Float64Var(&alphaoff, "alphaoff", 1, "Dirichlet concentration off the diagonal")
	flag.Float64Var(&wlow, "wlow", -1, "Lower bound of the uniform weight distribution")
	flag.Float64Var(&whigh, "whigh", 1, "Upper bound of the uniform weight distribution")
	flag.Float64Var(&inlow, "inlow", -2, "Lower bound of the uniform input distribution")
	flag.Float64Var(&inhigh, "inhigh", 2, "Upper bound of the uniform input distribution")

	var seed uint64
	flag.Uint64Var(&seed, "seed", 42, "Random seed")
	flag.Parse()

	if outname == "" || nobs == 0 || ninput == 0 || nchoice == 0 || nstate == 0 {
		_, _ = io.WriteString(os.Stderr, "'outname', 'nobs', 'ninput', 'nchoice', and 'nstate' are required arguments\n")
		os.Exit(1)
	}

	src := rand.NewSource(seed)

	trans, err := glmhmm.InitTransitions(nstate, glmhmm.DirichletTrans{AlphaDiag: alphadiag, AlphaOff: alphaoff}, src)
	if err != nil {
		panic(err)
	}

	weights, err := glmhmm.InitWeights(nstate, ninput, nchoice, glmhmm.UniformWeights{Low: wlow, High: whigh}, src)
	if err != nil {
		panic(err)
	}

	init, err := glmhmm.InitStates(nstate, glmhmm.UniformStates{}, src)
	if err != nil {
		panic(err)
	}

	cfg := glmsim.Config{
		NObs:      nobs,
		NInput:    ninput,
		NChoice:   nchoice,
		NState:    nstate,
		InputLow:  inlow,
		InputHigh: inhigh,
	}

	ds := glmsim.Generate(cfg, trans, weights, init, src)

	if nsession > 1 {
		ds.Sessions = make([]int, nsession+1)
		for s := 1; s <= nsession; s++ {
			ds.Sessions[s] = s * nobs / nsession
		}
	}

	if err := glmsim.WriteDataset(ds, outname); err != nil {
		panic(err)
	}
}
