package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunner_TicksUntilCancelled(t *testing.T) {
	t.Parallel()

	var idle int
	p := NewPlanner(respondGraph(t, &idle), nil, nil,
		WithLibrary(respondLibrary()),
		WithLogger(quietLogger()))
	r := NewRunner(p, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.Stats().Ticks >= 5
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	require.Error(t, r.Run(context.Background()), "a runner runs once")
}

func TestRunner_Stop(t *testing.T) {
	t.Parallel()

	var idle int
	p := NewPlanner(respondGraph(t, &idle), nil, nil,
		WithLibrary(respondLibrary()),
		WithLogger(quietLogger()))
	r := NewRunner(p, 0)
	require.Equal(t, DefaultTickInterval, r.interval)
	r.Stop()

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.ticker != nil
	}, 5*time.Second, time.Millisecond)
	r.Stop()
	r.Stop()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_MaxTicks(t *testing.T) {
	t.Parallel()

	var idle int
	p := NewPlanner(respondGraph(t, &idle), nil, nil,
		WithLibrary(respondLibrary()),
		WithLogger(quietLogger()))
	r := NewRunner(p, time.Millisecond, WithMaxTicks(3))

	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, 3, p.Stats().Ticks)
}
