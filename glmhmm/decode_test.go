package glmhmm

import (
	"math/rand"
	"testing"
)

// With well-separated emissions and sticky transitions, Viterbi decoding
// at the true parameters recovers most of the state sequence.
func TestDecode(t *testing.T) {

	n, d, c, k := 2000, 1, 2, 2
	r := rand.New(rand.NewSource(61))
	trans := stickyTrans(k, 0.95)
	weights := []float64{
		0, 4,
		0, -4,
	}
	y, x, states := gendat(n, d, c, k, trans, weights, r)

	hmm := New(n, d, c, k)
	decoded, err := hmm.Decode(y, x, trans, weights, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	e, total := CompareStates(decoded, states)
	if float64(e)/float64(total) > 0.2 {
		t.Fatalf("%d/%d decoding errors", e, total)
	}
}

// Decoding session by session must match decoding each session alone.
func TestDecodeSessions(t *testing.T) {

	d, c, k := 1, 2, 2
	n1, n2 := 300, 200
	r := rand.New(rand.NewSource(67))
	trans := stickyTrans(k, 0.9)
	weights := []float64{
		0, 3,
		0, -3,
	}

	y1, x1, _ := gendat(n1, d, c, k, trans, weights, r)
	y2, x2, _ := gendat(n2, d, c, k, trans, weights, r)

	y := append(append([]int(nil), y1...), y2...)
	x := append(append([]float64(nil), x1...), x2...)

	joint, err := New(n1+n2, d, c, k).Decode(y, x, trans, weights, nil, []int{0, n1, n1 + n2})
	if err != nil {
		t.Fatal(err)
	}

	dec1, err := New(n1, d, c, k).Decode(y1, x1, trans, weights, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	dec2, err := New(n2, d, c, k).Decode(y2, x2, trans, weights, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n1; i++ {
		if joint[i] != dec1[i] {
			t.Fatalf("session 1 differs at %d", i)
		}
	}
	for i := 0; i < n2; i++ {
		if joint[n1+i] != dec2[i] {
			t.Fatalf("session 2 differs at %d", i)
		}
	}
}
