package radar

import "testing"

func TestPositiveNegativeClamp(t *testing.T) {
	//1.- Beyond the ramp, both membership functions saturate at their bounds.
	if got := positive(10, 2); got != 1 {
		t.Fatalf("positive() = %v, want 1", got)
	}
	if got := positive(-10, 2); got != 0 {
		t.Fatalf("positive() = %v, want 0", got)
	}
	if got := negative(-10, 2); got != 1 {
		t.Fatalf("negative() = %v, want 1", got)
	}
	if got := negative(10, 2); got != 0 {
		t.Fatalf("negative() = %v, want 0", got)
	}
}

func TestBetweenPlateau(t *testing.T) {
	//1.- A value squarely inside the plateau has full membership.
	if got := between(0, -4, -2, 2, 4); got != 1 {
		t.Fatalf("between(0) = %v, want 1", got)
	}
	//2.- A value outside the outer bounds has zero membership.
	if got := between(10, -4, -2, 2, 4); got != 0 {
		t.Fatalf("between(10) = %v, want 0", got)
	}
	//3.- A value on the ramp is strictly between 0 and 1.
	got := between(-3, -4, -2, 2, 4)
	if got <= 0 || got >= 1 {
		t.Fatalf("between(-3) = %v, want value in (0,1)", got)
	}
}

func TestAndOrNot(t *testing.T) {
	if and(0.3, 0.7) != 0.3 {
		t.Fatalf("and() did not return the minimum")
	}
	if or(0.3, 0.7) != 0.7 {
		t.Fatalf("or() did not return the maximum")
	}
	if not(0.3) != 0.7 {
		t.Fatalf("not() did not invert")
	}
}
