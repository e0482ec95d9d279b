package mountlock

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCounter(t *testing.T, path string) int {
	t.Helper()
	n, err := readCounterFile(path)
	require.NoError(t, err)
	return n
}

func writeCounter(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, writeCounterFile(path, n))
}

func readCounterFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(b))
}

func writeCounterFile(path string, n int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(n)), 0644)
}

func TestLockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")

	l := New(data, 0)
	require.NoError(t, l.Lock(context.Background()))
	l.Unlock()

	_, err := os.Stat(l.lockFile)
	assert.True(t, os.IsNotExist(err), "lockfile should be unlinked after release")
}

func TestLockBlockSignalsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")

	l := New(data, 0)
	l.BlockSignals(true)

	require.NoError(t, l.Lock(context.Background()))
	assert.True(t, l.sigBlock)
	l.Unlock()

	_, err := os.Stat(l.lockFile)
	assert.True(t, os.IsNotExist(err), "lockfile should be unlinked after release")
}

func TestLockLogsAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	l := New(data, 0)
	l.SetLogger(logger.WithField("debugMask", 1))

	require.NoError(t, l.Lock(context.Background()))
	l.Unlock()

	assert.Contains(t, buf.String(), "acquired lock")
	assert.Contains(t, buf.String(), "released lock")
}

func TestSimpleLockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "utab")

	l := New(data, 0)
	l.UseSimpleLock(true)
	assert.True(t, filepathHasSuffix(l.lockFile, ".lock"))

	require.NoError(t, l.Lock(context.Background()))
	l.Unlock()
}

func filepathHasSuffix(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return s[len(s)-len(suffix):] == suffix
}

func TestLockContendedSecondWaitsForFirst(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")

	first := New(data, 1)
	require.NoError(t, first.Lock(context.Background()))

	second := New(data, 2)
	second.SetTimeout(200 * time.Millisecond)
	second.SetRetryInterval(time.Millisecond)

	released := make(chan struct{})
	go func() {
		time.Sleep(30 * time.Millisecond)
		first.Unlock()
		close(released)
	}()

	require.NoError(t, second.Lock(context.Background()))
	<-released
	second.Unlock()
}

func TestLockTimesOutOnStaleLock(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")

	holder := New(data, 1)
	require.NoError(t, holder.Lock(context.Background()))
	defer holder.Unlock()

	waiter := New(data, 2)
	waiter.SetTimeout(50 * time.Millisecond)
	waiter.SetRetryInterval(time.Millisecond)

	err := waiter.Lock(context.Background())
	assert.ErrorIs(t, err, ErrStale)
}

// TestLockContentionManyUpdaters exercises the hard-link protocol
// under N concurrent updaters incrementing a shared counter file k
// times each: the final count must be exactly N*k, and no single
// acquisition may block past its configured budget.
func TestLockContentionManyUpdaters(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "mtab")
	counter := filepath.Join(dir, "counter")
	writeCounter(t, counter, 0)

	const numUpdaters = 8
	const itersEach = 10

	var wg sync.WaitGroup
	errs := make(chan error, numUpdaters)

	for i := 0; i < numUpdaters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := New(data, id+1000)
			l.SetTimeout(5 * time.Second)
			l.SetRetryInterval(time.Millisecond)

			for j := 0; j < itersEach; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := l.Lock(ctx); err != nil {
					cancel()
					errs <- fmt.Errorf("updater %d: %w", id, err)
					return
				}
				n, err := readCounterFile(counter)
				if err == nil {
					err = writeCounterFile(counter, n+1)
				}
				l.Unlock()
				cancel()
				if err != nil {
					errs <- fmt.Errorf("updater %d: %w", id, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	assert.Equal(t, numUpdaters*itersEach, readCounter(t, counter))
}
