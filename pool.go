package edf2cfs

import (
	"runtime"
	"sync"
)

// Parallelism is the worker pool's degree of parallelism: the detected
// hardware parallelism with a floor of 2.
func Parallelism() int {
	p := runtime.NumCPU()
	if p < 2 {
		p = 2
	}
	return p
}

// Summary aggregates the outcomes of a batch run.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
}

// ConvertAll converts the given files with up to Parallelism()
// concurrent jobs. Files are processed in batches: each batch's jobs
// run in parallel and the next batch is admitted only once the whole
// batch has joined. Jobs are self-contained, so completion order
// within a batch is unobservable; results are accumulated in input
// order.
//
// If report is non-nil it is called once per file, in input order,
// after the file's batch has joined, never concurrently with running
// jobs.
func ConvertAll(paths []string, opts Options, report func(Result)) Summary {
	return convertAll(paths, opts, Parallelism(), report)
}

func convertAll(paths []string, opts Options, workers int, report func(Result)) Summary {
	if workers < 1 {
		workers = 1
	}

	summary := Summary{Results: make([]Result, len(paths))}

	for start := 0; start < len(paths); start += workers {
		end := min(start+workers, len(paths))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				summary.Results[i] = Convert(paths[i], opts)
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			res := summary.Results[i]
			if res.Ok() {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			if report != nil {
				report(res)
			}
		}
	}
	return summary
}
