package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loykin/observr/internal/observer"
	"github.com/loykin/observr/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartMethod(t *testing.T) {
	cases := []struct {
		in      string
		want    StartMethod
		wantErr bool
	}{
		{in: "", want: MethodThread},
		{in: "thread", want: MethodThread},
		{in: "process", want: MethodProcess},
		{in: "fork", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseStartMethod(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestStartUnknownName(t *testing.T) {
	m := newTestManager(t)

	err := m.Start(context.Background(), "ghost", 0)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStartStopsAfterDuration(t *testing.T) {
	m := newTestManager(t)
	o, err := m.Create(t.TempDir(), "bounded")
	require.NoError(t, err)

	begin := time.Now()
	require.NoError(t, m.Start(context.Background(), "bounded", 100*time.Millisecond))

	assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)
	assert.Equal(t, observer.StateStopped, o.State())
}

func TestStartReturnsOnContextCancel(t *testing.T) {
	m := newTestManager(t)
	o, err := m.Create(t.TempDir(), "cancelable")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx, "cancelable", 0)
	}()

	require.Eventually(t, o.Running, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("start did not return after context cancel")
	}
	assert.Equal(t, observer.StateStopped, o.State())
}

func TestStartUnblocksWhenStoppedElsewhere(t *testing.T) {
	m := newTestManager(t)
	o, err := m.Create(t.TempDir(), "external")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- m.Start(context.Background(), "external", 0)
	}()

	require.Eventually(t, o.Running, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Stop("external"))

	// The join loop notices the stop on its next tick.
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("start did not return after external stop")
	}
}

func TestStartAllThreadRunsWholeBatch(t *testing.T) {
	m := newTestManager(t)
	first, err := m.Create(t.TempDir(), "batch-one")
	require.NoError(t, err)
	second, err := m.Create(t.TempDir(), "batch-two")
	require.NoError(t, err)

	err = m.StartAll(context.Background(), []string{"batch-one", "batch-two"}, MethodThread, 100*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, observer.StateStopped, first.State())
	assert.Equal(t, observer.StateStopped, second.State())
}

func TestStartAllUnknownNameFailsBeforeStarting(t *testing.T) {
	m := newTestManager(t)
	o, err := m.Create(t.TempDir(), "known")
	require.NoError(t, err)

	err = m.StartAll(context.Background(), []string{"known", "ghost"}, MethodThread, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, observer.StateCreated, o.State())
}

func TestStartAllProcessUsesSpawner(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("/watched/alpha", "alpha")
	require.NoError(t, err)
	_, err = m.Create("/watched/beta", "beta")
	require.NoError(t, err)

	var mu sync.Mutex
	spawned := make(map[string]string)
	m.SetSpawner(func(_ context.Context, name, path string, duration time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		spawned[name] = path
		assert.Equal(t, 250*time.Millisecond, duration)
		return nil
	})

	err = m.StartAll(context.Background(), []string{"alpha", "beta"}, MethodProcess, 250*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"alpha": "/watched/alpha",
		"beta":  "/watched/beta",
	}, spawned)
}

func TestStartAllRejectsUnknownMethod(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(t.TempDir(), "solo")
	require.NoError(t, err)

	err = m.StartAll(context.Background(), []string{"solo"}, StartMethod("fiber"), 0)
	assert.Error(t, err)
}
