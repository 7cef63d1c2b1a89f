package glmsim

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/jess-breda/glmhmm/glmhmm"
)

func TestGenerate(t *testing.T) {

	src := rand.NewSource(1)

	k, d, c := 3, 2, 3
	trans, err := glmhmm.InitTransitions(k, glmhmm.DirichletTrans{AlphaDiag: 5, AlphaOff: 1}, src)
	if err != nil {
		t.Fatal(err)
	}
	weights, err := glmhmm.InitWeights(k, d, c, glmhmm.UniformWeights{Low: -1, High: 1}, src)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{NObs: 500, NInput: d, NChoice: c, NState: k, InputLow: -2, InputHigh: 2}
	ds := Generate(cfg, trans, weights, nil, src)

	if len(ds.Y) != 500 || len(ds.X) != 500*d || len(ds.States) != 500 {
		t.Fatal("wrong dataset shapes")
	}
	for t0, v := range ds.Y {
		if v < 0 || v >= c {
			t.Fatalf("choice %d out of range at %d", v, t0)
		}
		if ds.States[t0] < 0 || ds.States[t0] >= k {
			t.Fatalf("state out of range at %d", t0)
		}
	}
	for _, v := range ds.X {
		if v < -2 || v >= 2 {
			t.Fatalf("input %f outside the requested range", v)
		}
	}
}

func TestDatasetRoundTrip(t *testing.T) {

	src := rand.NewSource(2)

	k, d, c := 2, 1, 2
	trans, err := glmhmm.InitTransitions(k, glmhmm.DirichletTrans{AlphaDiag: 5, AlphaOff: 1}, src)
	if err != nil {
		t.Fatal(err)
	}
	weights, err := glmhmm.InitWeights(k, d, c, glmhmm.UniformWeights{Low: -1, High: 1}, src)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{NObs: 100, NInput: d, NChoice: c, NState: k, InputLow: -1, InputHigh: 1}
	ds := Generate(cfg, trans, weights, nil, src)
	ds.Sessions = []int{0, 50, 100}

	fname := filepath.Join(t.TempDir(), "ds.gob.gz")
	if err := WriteDataset(ds, fname); err != nil {
		t.Fatal(err)
	}

	ds2, err := ReadDataset(fname)
	if err != nil {
		t.Fatal(err)
	}

	if ds2.NObs != ds.NObs || ds2.NState != ds.NState {
		t.Fatal("dimensions changed in the round trip")
	}
	for i := range ds.Y {
		if ds.Y[i] != ds2.Y[i] {
			t.Fatalf("choices differ at %d", i)
		}
	}
	for i := range ds.Trans {
		if math.Abs(ds.Trans[i]-ds2.Trans[i]) > 0 {
			t.Fatalf("transition matrix differs at %d", i)
		}
	}
	if len(ds2.Sessions) != 3 {
		t.Fatal("sessions lost in the round trip")
	}

	// The file is actually gzip-compressed gob
	fi, err := os.Stat(fname)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Fatal("empty dataset file")
	}
}
