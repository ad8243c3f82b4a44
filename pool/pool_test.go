package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunExecutesAllTasks(t *testing.T) {
	p := New(4, 100)
	var count int64
	tasks := make([]func(ctx context.Context) error, 50)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		}
	}
	err := p.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Equal(t, int64(50), count)
}

func TestRunPropagatesFirstError(t *testing.T) {
	p := New(2, 10)
	boom := require.New(t)
	tasks := []func(ctx context.Context) error{
		func(ctx context.Context) error { return context.DeadlineExceeded },
		func(ctx context.Context) error { return nil },
	}
	err := p.Run(context.Background(), tasks)
	boom.Error(err)
}

func TestBatchesCoversEveryIndex(t *testing.T) {
	batches := Batches(10, 3)
	require.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 9}, {9, 10}}, batches)
}

func TestBatchesZeroSizeUsesWholeRange(t *testing.T) {
	batches := Batches(5, 0)
	require.Equal(t, [][2]int{{0, 5}}, batches)
}
