package utils

import "testing"

func TestProcessIndexedOrder(t *testing.T) {
	pp := NewParallelProcessor(4)
	results := pp.ProcessIndexed(200, func(i int) interface{} {
		return i * i
	}, "squares")

	if len(results) != 200 {
		t.Fatalf("got %d results, want 200", len(results))
	}
	for i, raw := range results {
		if raw.(int) != i*i {
			t.Fatalf("results[%d] = %v, want %d", i, raw, i*i)
		}
	}
}

func TestProcessIndexedMoreWorkersThanJobs(t *testing.T) {
	pp := NewParallelProcessor(16)
	results := pp.ProcessIndexed(3, func(i int) interface{} {
		return i
	}, "tiny batch")
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
}

func TestProcessIndexedEmpty(t *testing.T) {
	pp := NewParallelProcessor(4)
	if results := pp.ProcessIndexed(0, func(i int) interface{} { return i }, "empty"); results != nil {
		t.Errorf("got %v for zero jobs, want nil", results)
	}
}

func TestNewParallelProcessorDefaults(t *testing.T) {
	pp := NewParallelProcessor(0)
	if pp.NumWorkers <= 0 {
		t.Errorf("NumWorkers = %d, want a positive default", pp.NumWorkers)
	}
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(10, "test")
	for i := 0; i < 4; i++ {
		tracker.Increment()
	}
	processed, total, percent := tracker.Progress()
	if processed != 4 || total != 10 {
		t.Errorf("Progress = (%d, %d), want (4, 10)", processed, total)
	}
	if percent != 40 {
		t.Errorf("percent = %v, want 40", percent)
	}
	tracker.Finish()
}
