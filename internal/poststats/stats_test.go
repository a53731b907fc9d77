package poststats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCooldown = 20 * time.Millisecond

func newTestSession(t *testing.T, b *memBackend, postID string, userID uint) *PostStats {
	t.Helper()
	likes, err := b.GetLikes(context.Background(), postID)
	require.NoError(t, err)
	recordID, err := b.LoadSaved(context.Background(), postID, userID)
	require.NoError(t, err)
	s := newPostStats(postID, userID, likes, recordID, b,
		Config{Cooldown: testCooldown, CallTimeout: time.Second}, zap.NewNop(), nil, time.Now)
	t.Cleanup(s.Close)
	return s
}

func TestPostStats_ToggleLikeIsImmediate(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{1}
	s := newTestSession(t, b, "p", 2)

	snap, err := s.ToggleLike()
	require.NoError(t, err)
	assert.True(t, snap.Liked)
	assert.Equal(t, []uint{1, 2}, snap.Likes)
	assert.Equal(t, 2, snap.LikesCount)

	require.Eventually(t, s.Idle, time.Second, time.Millisecond)
	likes, _ := b.GetLikes(context.Background(), "p")
	assert.Equal(t, []uint{1, 2}, likes)
}

func TestPostStats_LikeWritesCoalesce(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	b.likeGate = make(chan struct{})
	s := newTestSession(t, b, "p", 5)

	_, err := s.ToggleLike() // write of {5} starts and blocks
	require.NoError(t, err)
	_, err = s.ToggleLike() // {} becomes pending
	require.NoError(t, err)
	snap, err := s.ToggleLike() // {5} replaces the pending set
	require.NoError(t, err)
	assert.True(t, snap.Liked)

	close(b.likeGate)
	require.Eventually(t, s.Idle, time.Second, time.Millisecond)

	writes := b.writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []uint{5}, writes[0])
	assert.Equal(t, []uint{5}, writes[1])
}

func TestPostStats_LikeFailureKeepsDisplayedState(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	b.setErr = errBackend
	s := newTestSession(t, b, "p", 5)

	_, err := s.ToggleLike()
	require.NoError(t, err)
	require.Eventually(t, s.Idle, time.Second, time.Millisecond)

	assert.True(t, s.Snapshot().Liked)
}

func TestPostStats_ToggleSavePersistsInBackground(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)

	snap, err := s.ToggleSave()
	require.NoError(t, err)
	assert.True(t, snap.Saved)
	assert.Equal(t, PhaseOptimistic, snap.Phase)
	assert.Equal(t, 1, snap.Pending)

	require.Eventually(t, func() bool { return s.Snapshot().Phase == PhaseConfirmed }, time.Second, time.Millisecond)
	assert.True(t, s.Snapshot().Saved)
	assert.NotEmpty(t, b.record("p", 1))
}

func TestPostStats_SaveUnsaveSaveBurst(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)

	for i := 0; i < 3; i++ {
		_, err := s.ToggleSave()
		require.NoError(t, err)
	}
	assert.True(t, s.Snapshot().Saved)

	require.Eventually(t, s.Idle, 2*time.Second, 2*time.Millisecond)
	snap := s.Snapshot()
	assert.True(t, snap.Saved)
	assert.Equal(t, PhaseConfirmed, snap.Phase)
	assert.Equal(t, "rec-2", b.record("p", 1))
}

func TestPostStats_UnsaveSaveUnsaveFromSaved(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	_, err := b.PersistSave(context.Background(), "p", 1)
	require.NoError(t, err)
	s := newTestSession(t, b, "p", 1)
	require.True(t, s.Snapshot().Saved)

	for i := 0; i < 3; i++ {
		_, err := s.ToggleSave()
		require.NoError(t, err)
	}
	assert.False(t, s.Snapshot().Saved)

	require.Eventually(t, s.Idle, 2*time.Second, 2*time.Millisecond)
	snap := s.Snapshot()
	assert.False(t, snap.Saved)
	assert.Equal(t, PhaseConfirmed, snap.Phase)
	assert.Empty(t, b.record("p", 1), "the record created mid-burst is deleted too")
	b.mu.Lock()
	assert.Equal(t, 2, b.saveCalls)
	b.mu.Unlock()
}

func TestPostStats_SaveUnsaveLeavesNothing(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)

	_, err := s.ToggleSave()
	require.NoError(t, err)
	_, err = s.ToggleSave()
	require.NoError(t, err)

	require.Eventually(t, s.Idle, 2*time.Second, 2*time.Millisecond)
	assert.False(t, s.Snapshot().Saved)
	assert.Empty(t, b.record("p", 1))
}

func TestPostStats_SaveFailureRollsBack(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	b.saveErr = errBackend
	s := newTestSession(t, b, "p", 1)

	snap, err := s.ToggleSave()
	require.NoError(t, err)
	assert.True(t, snap.Saved)

	require.Eventually(t, s.Idle, time.Second, time.Millisecond)
	snap = s.Snapshot()
	assert.False(t, snap.Saved)
	assert.Equal(t, PhaseConfirmed, snap.Phase)
}

func TestPostStats_RefreshDuringPendingSave(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{3}
	s := newTestSession(t, b, "p", 1)

	_, err := s.ToggleSave()
	require.NoError(t, err)
	// the queued save may or may not have landed; either way the intent stays visible
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Snapshot().Saved)

	require.Eventually(t, s.Idle, time.Second, time.Millisecond)
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Snapshot().Saved)
}

func TestPostStats_RefreshOvertakenBySaveIsDropped(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)

	b.saveGate = make(chan struct{})
	_, err := s.ToggleSave()
	require.NoError(t, err)

	// the refetch reads "not saved", then the queued save lands before it is applied
	b.afterLoad = func() {
		close(b.saveGate)
		require.Eventually(t, func() bool { return s.Snapshot().Phase == PhaseConfirmed }, time.Second, time.Millisecond)
	}
	require.NoError(t, s.Refresh(context.Background()))
	b.afterLoad = nil

	snap := s.Snapshot()
	assert.True(t, snap.Saved)
	assert.Equal(t, PhaseConfirmed, snap.Phase)

	// unsaving still finds the record
	require.Eventually(t, s.Idle, time.Second, time.Millisecond)
	_, err = s.ToggleSave()
	require.NoError(t, err)
	require.Eventually(t, s.Idle, time.Second, time.Millisecond)
	assert.False(t, s.Snapshot().Saved)
	assert.Empty(t, b.record("p", 1))
}

func TestPostStats_RefreshPicksUpForeignChanges(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)

	b.likes["p"] = []uint{7, 8}
	_, err := b.PersistSave(context.Background(), "p", 1)
	require.NoError(t, err)

	require.NoError(t, s.Refresh(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, []uint{7, 8}, snap.Likes)
	assert.True(t, snap.Saved)
}

func TestPostStats_ClosedSessionRejectsToggles(t *testing.T) {
	b := newMemBackend()
	b.likes["p"] = []uint{}
	s := newTestSession(t, b, "p", 1)
	s.Close()

	_, err := s.ToggleSave()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.ToggleLike()
	assert.ErrorIs(t, err, ErrClosed)
}
