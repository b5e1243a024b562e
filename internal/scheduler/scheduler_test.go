package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/util"
)

func start(t *testing.T, s *Scheduler) (cancel func()) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancelFn()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestAddValidates(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(Job{Name: "search", Run: func(context.Context) error { return nil }}))

	err := s.Add(Job{Name: "search", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
	assert.ErrorIs(t, s.Add(Job{Name: "nofunc"}), util.ErrInvalidConfig)
	assert.ErrorIs(t, s.Add(Job{Run: func(context.Context) error { return nil }}), util.ErrInvalidConfig)
}

func TestJobRunsOnInterval(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:     "scan",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	stop := start(t, s)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	st := s.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "scan", st[0].Name)
	assert.GreaterOrEqual(t, st[0].Runs, 3)
	assert.False(t, st[0].LastRun.IsZero())
	assert.False(t, st[0].NextRun.IsZero())
}

func TestJobNeverOverlaps(t *testing.T) {
	s := New()
	var active, maxActive, runs atomic.Int32
	release := make(chan struct{})

	require.NoError(t, s.Add(Job{
		Name:     "search",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			runs.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}))

	stop := start(t, s)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, s.RunNow("search"), ErrRunning)
	close(release)
	stop()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestRunNow(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add(Job{
		Name: "postprocess",
		Run: func(context.Context) error {
			ran <- struct{}{}
			return errors.New("disk full")
		},
	}))

	stop := start(t, s)
	defer stop()

	require.NoError(t, s.RunNow("postprocess"))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	assert.Eventually(t, func() bool {
		st := s.Status()
		return st[0].Runs == 1 && st[0].LastError == "disk full"
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Status()[0].NextRun.IsZero())

	assert.ErrorIs(t, s.RunNow("missing"), util.ErrNotFound)
}

func TestRunNowDuringShutdown(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name: "scan",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := s.RunNow("scan")
				if errors.Is(err, ErrStopped) {
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	wg.Wait()

	assert.ErrorIs(t, s.RunNow("scan"), ErrStopped)
	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load(), "no job may start after Run returned")
}

func TestImmediateJob(t *testing.T) {
	s := New()
	var once sync.Once
	ran := make(chan struct{})
	require.NoError(t, s.Add(Job{
		Name:      "refresh",
		Interval:  time.Hour,
		Immediate: true,
		Run: func(context.Context) error {
			once.Do(func() { close(ran) })
			return nil
		},
	}))

	stop := start(t, s)
	defer stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate job did not run")
	}
}

func TestStatusSorted(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }
	for _, name := range []string{"search", "refresh", "scan"} {
		require.NoError(t, s.Add(Job{Name: name, Interval: time.Hour, Run: noop}))
	}

	var names []string
	for _, st := range s.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"refresh", "scan", "search"}, names)
}
