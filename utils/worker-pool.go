package utils

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tj/go-spin"
)

// ParallelProcessor fans independent jobs out over a fixed pool of workers.
// Jobs must not mutate shared state; each worker reads immutable inputs and
// writes only its own result slot, so results come back in job order.
type ParallelProcessor struct {
	NumWorkers int
}

func NewParallelProcessor(numWorkers int) *ParallelProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &ParallelProcessor{NumWorkers: numWorkers}
}

// ProcessIndexed runs work(i) for every i in [0, n) across the pool and
// returns the results indexed by job number.
func (pp *ParallelProcessor) ProcessIndexed(n int, work func(i int) interface{}, progressName string) []interface{} {
	if n <= 0 {
		return nil
	}

	results := make([]interface{}, n)
	jobs := make(chan int, n)
	tracker := NewProgressTracker(int64(n), progressName)

	var wg sync.WaitGroup
	workers := pp.NumWorkers
	if workers > n {
		workers = n
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = work(i)
				tracker.Increment()
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	tracker.Finish()
	return results
}

// ProgressTracker counts completed jobs and periodically reports throughput.
type ProgressTracker struct {
	total     int64
	processed int64
	startTime time.Time
	name      string
	spinner   *spin.Spinner
	mu        sync.Mutex
}

func NewProgressTracker(total int64, name string) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
		name:      name,
		spinner:   spin.New(),
	}
}

func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.processed, 1)
	if processed%500 != 0 {
		return
	}

	pt.mu.Lock()
	frame := pt.spinner.Next()
	pt.mu.Unlock()

	elapsed := time.Since(pt.startTime)
	rate := float64(processed) / elapsed.Seconds()
	log.Printf("%s %s: %d/%d (%.1f%%) - %.1f items/sec",
		frame, pt.name, processed, pt.total,
		float64(processed)/float64(pt.total)*100, rate)
}

func (pt *ProgressTracker) Finish() {
	processed := atomic.LoadInt64(&pt.processed)
	if pt.total >= 100 {
		log.Printf("%s: completed %d items in %s", pt.name, processed, time.Since(pt.startTime).Round(time.Millisecond))
	}
}

// Progress returns processed count, total, and percent complete.
func (pt *ProgressTracker) Progress() (int64, int64, float64) {
	processed := atomic.LoadInt64(&pt.processed)
	return processed, pt.total, float64(processed) / float64(pt.total) * 100
}
