//go:build unix

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStore_LockExcludesOtherHandles(t *testing.T) {
	first := newTestStore(t)
	second, err := NewFileStore(first.Path(), zap.NewNop())
	require.NoError(t, err)

	unlock, err := first.Lock(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, first.LockPath())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx)
	assert.ErrorIs(t, err, ErrStorageLocked)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		unlockSecond, err := second.Lock(context.Background())
		if err == nil {
			unlockSecond()
		}
		close(acquired)
	}()

	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("lock not handed over after unlock")
	}
}

func TestFileStore_LockCanceled(t *testing.T) {
	store := newTestStore(t)
	unlock, err := store.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	other, err := NewFileStore(store.Path(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = other.Lock(ctx)
	assert.ErrorIs(t, err, ErrStorageLocked)
	assert.ErrorIs(t, err, context.Canceled)
}
