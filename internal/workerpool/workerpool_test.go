package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateRejectsBadCount(t *testing.T) {
	_, err := Create(0)
	require.ErrorIs(t, err, ErrBadCount)
}

func TestStartRunsOneTaskPerWorker(t *testing.T) {
	p, err := Create(4)
	require.NoError(t, err)

	var started int32
	err = p.Start(func(id int, running *atomic.Bool) {
		atomic.AddInt32(&started, 1)
		for running.Load() {
			time.Sleep(time.Millisecond)
		}
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&started) == 4
	}, time.Second, time.Millisecond)

	p.Shutdown()
}

func TestStartTwiceFails(t *testing.T) {
	p, _ := Create(1)
	require.NoError(t, p.Start(func(id int, running *atomic.Bool) {
		for running.Load() {
			time.Sleep(time.Millisecond)
		}
	}))
	defer p.Shutdown()

	err := p.Start(func(int, *atomic.Bool) {})
	require.ErrorIs(t, err, ErrAlreadyStarted)
}
