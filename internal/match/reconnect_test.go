package match

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSupervisorResolvesAfterWindow(t *testing.T) {
	sup := NewSupervisor(40*time.Millisecond, nil)
	matchID, player := uuid.New(), uuid.New()

	var resolved atomic.Int32
	sup.StartGrace(matchID, player, func() { resolved.Add(1) })
	assert.True(t, sup.HasGrace(matchID, player))

	assert.Eventually(t, func() bool { return resolved.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, sup.HasGrace(matchID, player))
}

func TestSupervisorCancelIsIdempotent(t *testing.T) {
	sup := NewSupervisor(50*time.Millisecond, nil)
	matchID, player := uuid.New(), uuid.New()

	var resolved atomic.Int32
	sup.StartGrace(matchID, player, func() { resolved.Add(1) })
	sup.CancelGrace(matchID, player)
	sup.CancelGrace(matchID, player)
	sup.CancelGrace(uuid.New(), player) // unknown key, still a no-op

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, resolved.Load())
	assert.False(t, sup.HasGrace(matchID, player))
}

func TestSupervisorIgnoresDuplicateStart(t *testing.T) {
	sup := NewSupervisor(40*time.Millisecond, nil)
	matchID, player := uuid.New(), uuid.New()

	var resolved atomic.Int32
	sup.StartGrace(matchID, player, func() { resolved.Add(1) })
	sup.StartGrace(matchID, player, func() { resolved.Add(10) })

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), resolved.Load())
}

func TestSupervisorReleaseMatchCancelsAllPlayers(t *testing.T) {
	sup := NewSupervisor(50*time.Millisecond, nil)
	matchID := uuid.New()
	a, b := uuid.New(), uuid.New()
	other := uuid.New()

	var resolved atomic.Int32
	sup.StartGrace(matchID, a, func() { resolved.Add(1) })
	sup.StartGrace(matchID, b, func() { resolved.Add(1) })
	sup.StartGrace(other, a, func() { resolved.Add(100) })

	sup.ReleaseMatch(matchID)
	assert.False(t, sup.HasGrace(matchID, a))
	assert.False(t, sup.HasGrace(matchID, b))
	assert.True(t, sup.HasGrace(other, a))

	assert.Eventually(t, func() bool { return resolved.Load() == 100 }, time.Second, 10*time.Millisecond)
}
