package intutils

import "testing"

func TestMin(t *testing.T) {
	if got := Min(3, 1, 2); got != 1 {
		t.Errorf("Min(3, 1, 2) = %d, want 1", got)
	}
	if got := Min(-5); got != -5 {
		t.Errorf("Min(-5) = %d, want -5", got)
	}
}

func TestMax(t *testing.T) {
	if got := Max(3, 1, 2); got != 3 {
		t.Errorf("Max(3, 1, 2) = %d, want 3", got)
	}
	if got := Max(-5, -2); got != -2 {
		t.Errorf("Max(-5, -2) = %d, want -2", got)
	}
}

func TestClip(t *testing.T) {
	cases := []struct {
		value, min, max, want int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{15, 0, 10, 10},
		{7, 7, 7, 7},
	}
	for _, c := range cases {
		if got := Clip(c.value, c.min, c.max); got != c.want {
			t.Errorf("Clip(%d, %d, %d) = %d, want %d", c.value, c.min,
				c.max, got, c.want)
		}
	}
}
