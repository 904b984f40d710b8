package vector

import (
	"math"
	"testing"
)

func TestCosine_Identical(t *testing.T) {
	v := []float32{1, 2, 3}
	if got := Cosine(v, v); math.Abs(got-1) > 1e-9 {
		t.Fatalf("want 1, got %v", got)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestCosine_ZeroMagnitude(t *testing.T) {
	zero := []float32{0, 0, 0}
	if got := Cosine(zero, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("zero stored vector: want 0, got %v", got)
	}
	if got := Cosine([]float32{1, 2, 3}, zero); got != 0 {
		t.Fatalf("zero query vector: want 0, got %v", got)
	}
	if got := Cosine(zero, zero); got != 0 {
		t.Fatalf("both zero: want 0, got %v", got)
	}
}

func TestCosine_LengthMismatch(t *testing.T) {
	if got := Cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := []float32{0, -1.5, 3.25, float32(math.MaxFloat32)}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: want %v, got %v", i, in[i], out[i])
		}
	}
}

func TestDecode_BadLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrBadEncoding {
		t.Fatalf("want ErrBadEncoding, got %v", err)
	}
}
