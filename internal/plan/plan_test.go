package plan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const kb = 1024

func batch(originals ...int64) []Input {
	ids := []string{"a", "b", "c", "d", "e"}
	out := make([]Input, len(originals))
	for i, o := range originals {
		out[i] = Input{ImageID: ids[i], Original: o}
	}
	return out
}

func TestComputeBestUsesSharedCappedTarget(t *testing.T) {
	got := Compute(batch(500*kb, 300*kb, 100*kb), 50, StrategyBest)

	for _, id := range []string{"a", "b", "c"} {
		if got[id].Target != 100*kb {
			t.Fatalf("target[%s] = %d, want %d", id, got[id].Target, 100*kb)
		}
	}
	if got["a"].Original != 500*kb {
		t.Fatalf("original not preserved: %+v", got["a"])
	}
}

func TestComputeWorstUsesSmallestNaiveTarget(t *testing.T) {
	got := Compute(batch(500*kb, 300*kb, 100*kb), 50, StrategyWorst)

	for _, id := range []string{"a", "b", "c"} {
		if got[id].Target != 50*kb {
			t.Fatalf("target[%s] = %d, want %d", id, got[id].Target, 50*kb)
		}
	}
}

func TestComputeAppliesLowerBound(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
	}{
		{"best", StrategyBest},
		{"worst", StrategyWorst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(batch(200*kb, 400*kb), 1, tt.strategy)
			for id, e := range got {
				if e.Target != MinTarget {
					t.Fatalf("target[%s] = %d, want %d", id, e.Target, MinTarget)
				}
			}
		})
	}
}

func TestComputeUpperBoundWinsOverFloor(t *testing.T) {
	got := Compute(batch(4*kb, 400*kb), 50, StrategyWorst)
	if got["a"].Target != 4*kb {
		t.Fatalf("small image target = %d, want its original %d", got["a"].Target, 4*kb)
	}
	if got["b"].Target != MinTarget {
		t.Fatalf("large image target = %d, want %d", got["b"].Target, MinTarget)
	}

	best := Compute(batch(4*kb, 400*kb), 50, StrategyBest)
	if best["b"].Target != 4*kb {
		t.Fatalf("best target = %d, want min original %d", best["b"].Target, 4*kb)
	}
}

func TestComputeMissingSources(t *testing.T) {
	got := Compute(batch(0, 300*kb, 0), 50, StrategyBest)

	if len(got) != 3 {
		t.Fatalf("plan has %d entries, want 3", len(got))
	}
	if !got["a"].Missing() || got["a"].Target != 0 {
		t.Fatalf("missing source entry = %+v", got["a"])
	}
	if got["b"].Target != 150*kb {
		t.Fatalf("valid target = %d, want %d", got["b"].Target, 150*kb)
	}

	none := Compute(batch(0, 0), 80, StrategyWorst)
	for id, e := range none {
		if e.Target != 0 {
			t.Fatalf("target[%s] = %d, want 0", id, e.Target)
		}
	}
}

func TestComputeBoundsAndMonotonicity(t *testing.T) {
	inputs := batch(37*kb, 512*kb, 9*kb+300, 2048*kb, 150*kb)

	for _, strategy := range []Strategy{StrategyBest, StrategyWorst} {
		prev := Compute(inputs, 1, strategy)
		for p := 1; p <= 100; p++ {
			got := Compute(inputs, p, strategy)

			var minOriginal int64 = -1
			for _, in := range inputs {
				if minOriginal < 0 || in.Original < minOriginal {
					minOriginal = in.Original
				}
			}
			for _, in := range inputs {
				target := got[in.ImageID].Target
				upper := in.Original
				if strategy == StrategyBest {
					upper = minOriginal
				}
				lower := min(MinTarget, upper)
				if target < lower || target > upper {
					t.Fatalf("%s p=%d target[%s]=%d outside [%d,%d]", strategy, p, in.ImageID, target, lower, upper)
				}
				if target < prev[in.ImageID].Target {
					t.Fatalf("%s p=%d target[%s] decreased: %d -> %d", strategy, p, in.ImageID, prev[in.ImageID].Target, target)
				}
			}
			prev = got
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	inputs := batch(512*kb, 33*kb, 0, 1024*kb)
	first := Compute(inputs, 42, StrategyWorst)
	for i := 0; i < 10; i++ {
		if got := Compute(inputs, 42, StrategyWorst); !reflect.DeepEqual(first, got) {
			t.Fatalf("plan changed between runs: %v vs %v", first, got)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"best", StrategyBest, false},
		{"WORST", StrategyWorst, false},
		{" best ", StrategyBest, false},
		{"median", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

type flag bool

func (f *flag) Cancelled() bool { return bool(*f) }

func TestMeasure(t *testing.T) {
	tmp := t.TempDir()
	present := filepath.Join(tmp, "present.jpg")
	if err := os.WriteFile(present, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var c flag
	got, err := Measure([]Source{
		{ImageID: "1", Path: present},
		{ImageID: "2", Path: filepath.Join(tmp, "absent.jpg")},
		{ImageID: "3", Path: tmp},
	}, &c)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want := []Input{{"1", 2048}, {"2", 0}, {"3", 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Measure = %v, want %v", got, want)
	}

	c = true
	if _, err := Measure([]Source{{ImageID: "1", Path: present}}, &c); err != ErrCancelled {
		t.Fatalf("Measure err = %v, want %v", err, ErrCancelled)
	}
}
