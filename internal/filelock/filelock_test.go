package filelock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "report.lock")
	lock := NewFileLock(lockPath)
	assert.Equal(t, lockPath, lock.Path())

	require.NoError(t, lock.Acquire(context.Background()))
	assert.FileExists(t, lockPath)
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "second release must be a no-op")
}

func TestTryAcquire_HeldElsewhere(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "report.lock")
	first := NewFileLock(lockPath)
	require.NoError(t, first.Acquire(context.Background()))

	second := NewFileLock(lockPath)
	ok, err := second.TryAcquire()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release())
	ok, err = second.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release())
}

func TestAcquire_ContextTimeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "report.lock")
	holder := NewFileLock(lockPath)
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := NewFileLock(lockPath).Acquire(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire lock")
}

func TestConcurrentLockedIncrements(t *testing.T) {
	dir := t.TempDir()
	counterPath := filepath.Join(dir, "counter.txt")
	require.NoError(t, os.WriteFile(counterPath, []byte("0"), 0644))

	const workers, iterations = 5, 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock := NewFileLock(counterPath + ".lock")
				if err := lock.Acquire(context.Background()); err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				data, _ := os.ReadFile(counterPath)
				n, _ := strconv.Atoi(string(data))
				if err := AtomicWrite(counterPath, []byte(strconv.Itoa(n+1))); err != nil {
					t.Errorf("write: %v", err)
				}
				lock.Release()
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(counterPath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(workers*iterations), string(data))
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "result.json")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestAtomicWrite_TargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := AtomicWrite(target, []byte("x"))
	require.Error(t, err)

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consensus.json")
	in := map[string]any{"success": true, "confidence": 0.75}

	require.NoError(t, WriteJSON(context.Background(), path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 0.75, out["confidence"])
}

func TestWriteJSON_Unencodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	err := WriteJSON(context.Background(), path, map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}
