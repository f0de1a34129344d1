package feature

import (
	"context"
	"runtime"
	"sync"
)

// FontResult is one font's outcome within a batch run.
type FontResult struct {
	Path   string
	Result *Result // nil when the font could not be processed at all
	Err    error
}

// BatchProcess runs the pipeline over several font files concurrently,
// with one worker per core at most and one job per font. Results come back
// in input order. Fonts fail independently; one broken font never stops
// the batch.
//
// Cancelling the context drops fonts not yet started, marking them with
// the context's error. Fonts mid-flight run to completion, so no font file
// is ever left half-written.
func BatchProcess(ctx context.Context, paths []string, opts Options) []FontResult {
	if len(paths) == 0 {
		return nil
	}
	results := make([]FontResult, len(paths))
	workers := runtime.NumCPU()
	if workers > len(paths) {
		workers = len(paths)
	}
	tracer().Debugf("processing %d font(s) with %d worker(s)", len(paths), workers)
	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := ProcessFont(paths[i], opts)
				results[i] = FontResult{Path: paths[i], Result: res, Err: err}
			}
		}()
	}
	feeding := true
	for i := 0; i < len(paths) && feeding; i++ {
		select {
		case <-ctx.Done():
			for j := i; j < len(paths); j++ {
				results[j] = FontResult{Path: paths[j], Err: ctx.Err()}
			}
			feeding = false
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// FirstError returns the error of the first failed font of a batch, nil
// when every font went through.
func FirstError(results []FontResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
