package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAtomic(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "out.txt")
	assert.False(t, Exists(filePath))

	require.NoError(t, ReplaceAtomic(filePath, ".tmp", func(f *os.File) error {
		_, err := f.WriteString("hello")
		return err
	}))
	assert.True(t, Exists(filePath))
	assert.False(t, Exists(filePath+".tmp"))
	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	failure := errors.New("write failed")
	err = ReplaceAtomic(filePath, ".tmp", func(f *os.File) error { return failure })
	assert.ErrorIs(t, err, failure)
	assert.False(t, Exists(filePath+".tmp"))
	content, err = os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content), "failed writes leave the previous file")
}

func TestExecOnFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "x.lock")
	var ran bool
	require.NoError(t, ExecOnFileLock(context.Background(), lockPath, func() { ran = true }))
	assert.True(t, ran)

	// A lock held elsewhere makes a cancelled context give up.
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	savedPeriod := LockPollPeriod
	LockPollPeriod = 10 * time.Millisecond
	defer func() { LockPollPeriod = savedPeriod }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ran = false
	err = ExecOnFileLock(ctx, lockPath, func() { ran = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}
