// file: internal/housekeeping/housekeeping_test.go
// version: 1.0.0
// guid: 0d6a2f94-b3c8-4e71-9f25-7e1c4b8a3d06

package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchives struct {
	got   time.Duration
	calls int
}

func (f *fakeArchives) Expire(olderThan time.Duration) int {
	f.calls++
	f.got = olderThan
	return 2
}

type fakeVisitors struct {
	got time.Duration
}

func (f *fakeVisitors) EvictIdle(ttl time.Duration) int {
	f.got = ttl
	return 1
}

type fakeCache struct{ swept int }

func (f *fakeCache) Sweep() int {
	f.swept++
	return 3
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(Config{ArchiveResultTTL: time.Hour, VisitorIdleTTL: 24 * time.Hour},
		&fakeArchives{}, &fakeVisitors{}, &fakeCache{})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Entries())
}

func TestNewSkipsDisabledJobs(t *testing.T) {
	s, err := New(Config{}, &fakeArchives{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries(), "only runtime stats remain")
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{ArchiveResultTTL: time.Hour, ArchiveSchedule: "every tuesday"}, &fakeArchives{}, nil)
	assert.Error(t, err)
}

func TestJobsPassConfiguredTTLs(t *testing.T) {
	archives, visitors, c := &fakeArchives{}, &fakeVisitors{}, &fakeCache{}
	s, err := New(Config{ArchiveResultTTL: 90 * time.Minute, VisitorIdleTTL: 2 * time.Hour}, archives, visitors, c)
	require.NoError(t, err)

	s.ExpireArchives()
	s.EvictVisitors()
	s.SweepCaches()
	s.RecordRuntimeStats()

	assert.Equal(t, 1, archives.calls)
	assert.Equal(t, 90*time.Minute, archives.got)
	assert.Equal(t, 2*time.Hour, visitors.got)
	assert.Equal(t, 1, c.swept)
}

func TestScheduledJobRuns(t *testing.T) {
	archives := &fakeArchives{}
	done := make(chan struct{}, 1)
	s, err := New(Config{ArchiveResultTTL: time.Minute, ArchiveSchedule: "@every 1s"}, expireNotifier{archives, done}, nil)
	require.NoError(t, err)
	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("archive expiry never ran")
	}
}

type expireNotifier struct {
	inner *fakeArchives
	done  chan struct{}
}

func (e expireNotifier) Expire(olderThan time.Duration) int {
	n := e.inner.Expire(olderThan)
	select {
	case e.done <- struct{}{}:
	default:
	}
	return n
}

func TestStopHonorsContext(t *testing.T) {
	s, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
