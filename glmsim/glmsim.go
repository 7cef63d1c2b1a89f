// Package glmsim generates synthetic GLM-HMM datasets for simulation
// studies and provides the gob round-trip used by the commands.
package glmsim

import (
	"compress/gzip"
	"encoding/gob"
	"os"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jess-breda/glmhmm/glmhmm"
)

// Dataset holds one simulated GLM-HMM sequence together with the true
// parameters that produced it.
type Dataset struct {

	// Dimensions: time points, inputs, choices, states
	NObs    int
	NInput  int
	NChoice int
	NState  int

	// The observed choices
	Y []int

	// The inputs, NObs x NInput
	X []float64

	// The true latent states
	States []int

	// The true parameters
	Trans   []float64
	Weights []float64
	Init    []float64

	// Session boundaries, if the data were generated in sessions
	Sessions []int
}

// Config controls data generation.
type Config struct {

	// Dimensions: time points, inputs, choices, states
	NObs    int
	NInput  int
	NChoice int
	NState  int

	// Inputs are drawn uniformly from [InputLow, InputHigh)
	InputLow  float64
	InputHigh float64
}

// Generate samples a synthetic dataset from the given true parameters:
// the latent states follow the Markov chain defined by trans (starting
// from init, or uniformly if init is nil), the inputs are uniform draws,
// and each choice is drawn from the state's multinomial-logit emission
// distribution.
func Generate(cfg Config, trans, weights, init []float64, src rand.Source) *Dataset {

	n, d, c, k := cfg.NObs, cfg.NInput, cfg.NChoice, cfg.NState

	uin := distuv.Uniform{Min: cfg.InputLow, Max: cfg.InputHigh, Src: src}
	u01 := distuv.Uniform{Min: 0, Max: 1, Src: src}

	ds := &Dataset{
		NObs:    n,
		NInput:  d,
		NChoice: c,
		NState:  k,
		Y:       make([]int, n),
		X:       make([]float64, n*d),
		States:  make([]int, n),
		Trans:   append([]float64(nil), trans...),
		Weights: append([]float64(nil), weights...),
		Init:    append([]float64(nil), init...),
	}

	// Initial state
	var st int
	if init != nil {
		st = sample(init, u01.Rand())
	} else {
		st = int(float64(k) * u01.Rand())
	}

	prob := make([]float64, c)

	for t := 0; t < n; t++ {
		ds.States[t] = st

		for j := 0; j < d; j++ {
			ds.X[t*d+j] = uin.Rand()
		}

		glmhmm.CompObs(ds.X[t*d:(t+1)*d], weights[st*d*c:(st+1)*d*c], prob, c)
		ds.Y[t] = sample(prob, u01.Rand())

		st = sample(trans[st*k:(st+1)*k], u01.Rand())
	}

	return ds
}

// sample returns the index of the category containing the point u of a
// unit interval partitioned according to prob.
func sample(prob []float64, u float64) int {

	var cum float64
	for i, p := range prob {
		cum += p
		if u < cum {
			return i
		}
	}

	return len(prob) - 1
}

// WriteDataset writes a dataset to a gzip-compressed gob file.
func WriteDataset(ds *Dataset, fname string) error {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fid.Close()

	gid := gzip.NewWriter(fid)
	defer gid.Close()

	enc := gob.NewEncoder(gid)
	return enc.Encode(ds)
}

// ReadDataset reads a dataset from a gzip-compressed gob file.
func ReadDataset(fname string) (*Dataset, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	gid, err := gzip.NewReader(fid)
	if err != nil {
		return nil, err
	}
	defer gid.Close()

	dec := gob.NewDecoder(gid)

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, err
	}

	return &ds, nil
}
