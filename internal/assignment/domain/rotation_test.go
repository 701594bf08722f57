package domain

import "testing"

func TestAdvance(t *testing.T) {
	cases := []struct {
		current  int
		poolSize int
		want     int
		wrapped  bool
	}{
		{0, 3, 1, false},
		{1, 3, 2, false},
		{2, 3, 0, true},
		{0, 1, 0, true},
		{4, 5, 0, true},
	}

	for _, tc := range cases {
		next, wrapped := Advance(tc.current, tc.poolSize)
		if next != tc.want || wrapped != tc.wrapped {
			t.Errorf("Advance(%d, %d) = (%d, %v), want (%d, %v)",
				tc.current, tc.poolSize, next, wrapped, tc.want, tc.wrapped)
		}
	}
}

func TestAdvanceFullPassWrapsExactlyOnce(t *testing.T) {
	const poolSize = 4
	index := poolSize - 1 // pointer sits on the last agent
	wraps := 0
	for i := 0; i < poolSize; i++ {
		var wrapped bool
		index, wrapped = Advance(index, poolSize)
		if wrapped {
			wraps++
		}
	}
	if wraps != 1 {
		t.Errorf("full pass wrapped %d times, want 1", wraps)
	}
}

func TestPickIndexClampsStalePointer(t *testing.T) {
	cases := []struct {
		index    int
		poolSize int
		want     int
	}{
		{0, 3, 0},
		{2, 3, 2},
		{3, 3, 0}, // pool shrank under the pointer
		{-1, 3, 0},
	}

	for _, tc := range cases {
		if got := PickIndex(tc.index, tc.poolSize); got != tc.want {
			t.Errorf("PickIndex(%d, %d) = %d, want %d", tc.index, tc.poolSize, got, tc.want)
		}
	}
}
