package rng

import "testing"

func TestDeterminism(t *testing.T) {
	r1 := New(42)
	r2 := New(42)
	for i := 0; i < 1000; i++ {
		if r1.Uint32() != r2.Uint32() {
			t.Fatalf("determinism broken at iteration %d", i)
		}
	}
}

func TestDifferentSeeds(t *testing.T) {
	r1 := New(42)
	r2 := New(43)
	same := 0
	for i := 0; i < 100; i++ {
		if r1.Uint32() == r2.Uint32() {
			same++
		}
	}
	if same > 5 {
		t.Fatalf("different seeds produced %d/100 identical values", same)
	}
}

func TestFloat64Bounds(t *testing.T) {
	r := New(42)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %f, out of [0, 1)", v)
		}
	}
}

func TestUniformRangeBounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		v := r.UniformRange(-0.005, 0.005)
		if v < -0.005 || v >= 0.005 {
			t.Fatalf("UniformRange(-0.005, 0.005) = %f, out of bounds", v)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	r := New(99)
	for i := 0; i < 50; i++ {
		r.Uint32()
	}
	saved := r.StateBytes()

	r2 := New(1)
	r2.RestoreStateBytes(saved)

	for i := 0; i < 100; i++ {
		if r.Uint32() != r2.Uint32() {
			t.Fatalf("restored RNG diverged at iteration %d", i)
		}
	}
}
