package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunSweep_RunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan struct{})
	go func() {
		runSweep(ctx, func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return errors.New("boom")
		}, 10*time.Millisecond, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRunSweep_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	runSweep(ctx, func(context.Context) error {
		calls.Add(1)
		return nil
	}, time.Hour, zap.NewNop())

	assert.Equal(t, int32(1), calls.Load())
}
