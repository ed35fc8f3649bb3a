// Package dispatch executes large numbers of independent send tasks in
// fixed-size batches with an inter-batch delay, tolerating individual
// failures without aborting the run.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campaigner/internal/domain"
)

const (
	DefaultBatchSize = 100
	DefaultDelay     = time.Second
)

// Task is one recipient's unit of work. A nil return counts as sent,
// anything else as failed. Tasks are expected to swallow provider errors
// internally; a panic is still caught here and counted as a failure.
type Task func(ctx context.Context) error

type Options struct {
	BatchSize int
	Delay     time.Duration
}

// Result aggregates a whole run. SentCount+FailedCount always equals the
// number of tasks handed in; error indexes are absolute positions in the
// original task list.
type Result struct {
	SentCount   int
	FailedCount int
	Errors      []domain.SendError
}

// Run partitions tasks into consecutive chunks of BatchSize, executes each
// chunk concurrently and waits for every task in it to settle before moving
// on, sleeping Delay between chunks. Batches run strictly in order; within
// a batch no ordering is guaranteed.
//
// Cancellation is observed only at the inter-chunk suspension point: an
// in-flight chunk always settles, then the remaining tasks are recorded as
// failed with the context error.
func Run(ctx context.Context, tasks []Task, opts Options) Result {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var res Result
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}

		chunkErrs := make([]error, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				chunkErrs[i-start] = settle(ctx, tasks[i])
			}(i)
		}
		wg.Wait()

		for i, err := range chunkErrs {
			if err == nil {
				res.SentCount++
				continue
			}
			res.FailedCount++
			res.Errors = append(res.Errors, domain.SendError{Index: start + i, Error: err.Error()})
		}

		if end >= len(tasks) {
			break
		}
		select {
		case <-ctx.Done():
			for i := end; i < len(tasks); i++ {
				res.FailedCount++
				res.Errors = append(res.Errors, domain.SendError{Index: i, Error: ctx.Err().Error()})
			}
			return res
		case <-time.After(delay):
		}
	}
	return res
}

// settle runs one task and converts a panic into an error so a misbehaving
// task cannot take its siblings down with it.
func settle(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return t(ctx)
}
