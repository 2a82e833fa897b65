// Package review implements concurrent, queue-based review of existing
// translations. A batch of items is fanned out across a bounded worker pool;
// each worker asks the model for a verdict and the results are partitioned
// into approved and rejected collections, which are serialized to CSV.
package review

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/edSPIRIT/transifex-tools/csvfile"
	"github.com/edSPIRIT/transifex-tools/translate"
)

// DefaultWorkers is the worker pool size when the caller does not set one.
const DefaultWorkers = 4

// Batch holds the partitioned results of one ProcessBatch invocation.
type Batch struct {
	// Approved are results with IsValid=true, in accumulator arrival order.
	Approved []csvfile.Result
	// Rejected are results with IsValid=false, including error fallbacks.
	Rejected []csvfile.Result
	// All is the completion-order log of every result.
	All []csvfile.Result
}

// Coordinator fans review work out across a worker pool.
type Coordinator struct {
	// Engine performs the per-item review call.
	Engine *translate.Engine
	// Workers is the pool size (default DefaultWorkers).
	Workers int
	// OnResult is called after each item completes, from worker
	// goroutines. done counts completed items so far.
	OnResult func(res csvfile.Result, done, total int)
}

// ProcessBatch reviews every item and returns the partitioned results.
//
// Each item is dispatched exactly once to the Engine on a pool of
// Coordinator.Workers goroutines and lands in exactly one of the two
// partitions; per-item model failures have already been converted to
// rejected results by the Engine, so the only error ProcessBatch itself can
// return is an invalid pool size. The call blocks until every dispatched
// item has a result. Result order within each partition reflects completion
// order, not submission order.
func (c *Coordinator) ProcessBatch(ctx context.Context, items []csvfile.Item) (*Batch, error) {
	workers := c.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	if workers < 1 {
		return nil, fmt.Errorf("invalid worker count %d: must be at least 1", workers)
	}
	if c.Engine == nil {
		return nil, fmt.Errorf("review coordinator has no engine")
	}

	batch := &Batch{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, item := range items {
		sem <- struct{}{}
		wg.Add(1)

		go func(it csvfile.Item) {
			defer func() {
				<-sem
				wg.Done()
			}()

			res := c.Engine.Review(ctx, it)

			mu.Lock()
			batch.All = append(batch.All, res)
			if res.IsValid {
				batch.Approved = append(batch.Approved, res)
			} else {
				batch.Rejected = append(batch.Rejected, res)
			}
			done := len(batch.All)
			mu.Unlock()

			if c.OnResult != nil {
				c.OnResult(res, done, len(items))
			}
		}(item)
	}

	wg.Wait()
	return batch, nil
}

// WriteFiles serializes the batch into approved_<lang>.csv and
// rejected_<lang>.csv under dir, returning both paths.
func (b *Batch) WriteFiles(dir, lang string) (approvedPath, rejectedPath string, err error) {
	approvedPath = filepath.Join(dir, fmt.Sprintf("approved_%s.csv", lang))
	rejectedPath = filepath.Join(dir, fmt.Sprintf("rejected_%s.csv", lang))

	if err := csvfile.WriteResults(approvedPath, b.Approved); err != nil {
		return "", "", fmt.Errorf("writing approved results: %w", err)
	}
	if err := csvfile.WriteResults(rejectedPath, b.Rejected); err != nil {
		return "", "", fmt.Errorf("writing rejected results: %w", err)
	}
	return approvedPath, rejectedPath, nil
}
