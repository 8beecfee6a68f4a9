package speed

import "testing"

func TestCycleWraps(t *testing.T) {
	c := New([]float64{1.0, 1.5, 2.0})

	if got := c.Current(); got != 1.0 {
		t.Fatalf("Current() = %v, want 1.0", got)
	}

	want := []float64{1.5, 2.0, 1.0}
	for i, w := range want {
		if got := c.Cycle(); got != w {
			t.Errorf("Cycle() #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestDefaultMultipliers(t *testing.T) {
	c := New(nil)
	if got := c.Current(); got != 1.0 {
		t.Errorf("default Current() = %v, want 1.0", got)
	}

	// A full cycle through the default set returns to the start.
	for range DefaultMultipliers {
		c.Cycle()
	}
	if got := c.Current(); got != 1.0 {
		t.Errorf("after full cycle Current() = %v, want 1.0", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		multipliers []float64
		cycles      int
		want        string
	}{
		{[]float64{1.0, 1.5}, 0, "1x"},
		{[]float64{1.0, 1.5}, 1, "1.5x"},
		{[]float64{1.0, 1.75}, 1, "1.75x"},
		{[]float64{1.0, 0.8}, 1, "0.8x"},
	}

	for _, tt := range tests {
		c := New(tt.multipliers)
		for i := 0; i < tt.cycles; i++ {
			c.Cycle()
		}
		if got := c.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}
