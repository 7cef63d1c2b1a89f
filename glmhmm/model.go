// Package glmhmm fits generalized-linear-model hidden Markov models: a
// discrete latent state evolves as a Markov chain, and at each time point
// the observed categorical choice is drawn from a multinomial-logit
// regression on an external input vector, with state-specific weights.
package glmhmm

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"gonum.org/v1/gonum/floats"
)

// HMM represents a GLM-HMM of fixed dimensions.  The parameters (transition
// matrix, regression weights, initial state distribution) are not stored on
// the model value; they are passed to and returned from Fit so that each
// fitting run owns its own copies.
type HMM struct {

	// Number of time points
	NObs int

	// Number of input covariates
	NInput int

	// Number of choice categories
	NChoice int

	// Number of latent states
	NState int

	// Write log messages here
	msglogger *log.Logger
	parlogger *log.Logger
}

// New returns an HMM value with the given size parameters.
func New(nobs, ninput, nchoice, nstate int) *HMM {

	hmm := &HMM{
		NObs:    nobs,
		NInput:  ninput,
		NChoice: nchoice,
		NState:  nstate,
	}

	return hmm
}

// SetLogger provides a pair of loggers that will be used to write logging
// messages (a message log and a parameter log).
func (hmm *HMM) SetLogger(logname string) *log.Logger {

	fid, err := os.Create(logname + "_msg.log")
	if err != nil {
		panic(err)
	}
	hmm.msglogger = log.New(fid, "", log.Ltime)

	fid, err = os.Create(logname + "_par.log")
	if err != nil {
		panic(err)
	}
	hmm.parlogger = log.New(fid, "", 0)

	// The calling program can also use this logger
	return hmm.msglogger
}

func (hmm *HMM) messages() *log.Logger {
	if hmm.msglogger == nil {
		hmm.msglogger = log.New(os.Stderr, "", log.Ltime)
	}
	return hmm.msglogger
}

func (hmm *HMM) params() *log.Logger {
	if hmm.parlogger == nil {
		hmm.parlogger = log.New(os.Stderr, "", 0)
	}
	return hmm.parlogger
}

// WriteSummary writes the model parameters to the parameter logger.
// The optional state labels are used if provided.
func (hmm *HMM) WriteSummary(trans, weights, init []float64, labels []string, title string) {

	logger := hmm.params()

	logger.Printf(title)
	logger.Printf("\n")

	if init != nil {
		logger.Printf("Initial state distribution:\n")
		hmm.writeMatrix(init, 0, hmm.NState, 1, labels, nil)
		logger.Printf("\n")
	}

	logger.Printf("Transition matrix:\n")
	hmm.writeMatrix(trans, 0, hmm.NState, hmm.NState, labels, labels)
	logger.Printf("\n")

	logger.Printf("Weights:\n")
	for st := 0; st < hmm.NState; st++ {
		logger.Printf("State %d:\n", st)
		hmm.writeMatrix(weights, st*hmm.NInput*hmm.NChoice, hmm.NInput, hmm.NChoice, nil, nil)
	}
	logger.Printf("\n")
}

// writeMatrix writes a matrix in text format to the logger
func (hmm *HMM) writeMatrix(x []float64, off, nrow, ncol int, rowlabels, collabels []string) {

	var buf bytes.Buffer

	logger := hmm.params()

	if rowlabels != nil && nrow != len(rowlabels) {
		msg := "len(rowlabels) != nrow\n"
		_, _ = io.WriteString(os.Stderr, msg)
	}

	if collabels != nil {
		if ncol != len(collabels) {
			msg := "len(collabels) != ncol\n"
			_, _ = io.WriteString(os.Stderr, msg)
		}
		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", ""))
		}
		for _, c := range collabels {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", c))
		}
		logger.Printf(buf.String())
	}

	for i := 0; i < nrow; i++ {

		buf.Reset()

		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%-20s", rowlabels[i]))
		}
		for j := 0; j < ncol; j++ {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20.4f", x[off+i*ncol+j]))
		}

		logger.Printf(buf.String())
	}
}

// normalize the values in x to have a sum of 1.  If the mass is too small
// to divide by, every value is set to z.
func normalizeSum(x []float64, z float64) {
	scale := floats.Sum(x)
	if scale < 1e-10 {
		for j := range x {
			x[j] = z
		}
		return
	}
	floats.Scale(1/scale, x)
}

func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}

// Zero the elements of x
func zero(x []float64) {
	for j := range x {
		x[j] = 0
	}
}

// CompareStates returns the number of positions where the state sequences
// x and y disagree, and the total number of positions.  Panics if the
// lengths of x and y differ.
func CompareStates(x, y []int) (int, int) {

	if len(x) != len(y) {
		panic("Lengths are not equal")
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x)
}
