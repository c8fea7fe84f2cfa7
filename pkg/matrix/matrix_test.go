package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jabolina/rga-sync/internal/errs"
	"github.com/jabolina/rga-sync/internal/ids"
	"github.com/jabolina/rga-sync/internal/logging"
	"github.com/jabolina/rga-sync/pkg/types"
)

const (
	self  ids.PeerID = "peer-self"
	other ids.PeerID = "peer-other"
	third ids.PeerID = "peer-third"
)

func newTestMatrix(own ids.PeerID) *PeerMatrix {
	return New(own, logging.NewDefaultLogger())
}

func TestNewSeedsOwnIndexZero(t *testing.T) {
	m := newTestMatrix(self)
	assert.Equal(t, self, m.OwnPeerID())
	assert.Equal(t, types.LocalIndex(0), m.PeerIDToIndex(self))
}

func TestPeerIDToIndexAssignsSequentially(t *testing.T) {
	m := newTestMatrix(self)
	require.Equal(t, types.LocalIndex(0), m.PeerIDToIndex(self))
	require.Equal(t, types.LocalIndex(1), m.PeerIDToIndex(other))
	require.Equal(t, types.LocalIndex(2), m.PeerIDToIndex(third))
	// re-resolving an already-known peer returns the same index, not a new one.
	assert.Equal(t, types.LocalIndex(1), m.PeerIDToIndex(other))
}

func TestPeerIDToIndexRecordsPendingUpdate(t *testing.T) {
	m := newTestMatrix(self)
	assert.False(t, m.HasPendingClockUpdate())
	m.PeerIDToIndex(other)
	assert.True(t, m.HasPendingClockUpdate())

	update := m.SnapshotClockUpdate()
	require.Len(t, update, 1)
	assert.Equal(t, other, update[0].PeerID)
	assert.Equal(t, types.LocalIndex(1), update[0].PeerIndex)
}

func TestPeerIndexMappingContradictory(t *testing.T) {
	m := newTestMatrix(self)
	otherID := other
	require.NoError(t, m.PeerIndexMapping(other, &otherID, 1))

	thirdID := third
	err := m.PeerIndexMapping(other, &thirdID, 1)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.ContradictoryMapping))
}

func TestPeerIndexMappingNonConsecutive(t *testing.T) {
	m := newTestMatrix(self)
	otherID := other
	err := m.PeerIndexMapping(other, &otherID, 5)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.NonConsecutiveIndex))
}

func TestPeerIndexMappingMissingID(t *testing.T) {
	m := newTestMatrix(self)
	err := m.PeerIndexMapping(other, nil, 1)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.NewIndexMissingId))
}

func TestRemoteIndexToPeerID(t *testing.T) {
	m := newTestMatrix(self)
	otherID := other
	require.NoError(t, m.PeerIndexMapping(third, &otherID, 1))

	resolved, err := m.RemoteIndexToPeerID(third, 1)
	require.NoError(t, err)
	assert.Equal(t, other, resolved)

	_, err = m.RemoteIndexToPeerID(third, 99)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.UnknownRemoteIndex))
}

func TestApplyClockUpdateAdvancesAndDetectsRegression(t *testing.T) {
	m := newTestMatrix(self)
	update := types.ClockUpdate{
		{PeerID: other, PeerIndex: 1, MsgCount: 3},
	}
	// third reports knowing 3 messages from other; we are behind until we
	// catch up ourselves, so we are not yet causally ready to deliver from
	// third w.r.t. other.
	require.NoError(t, m.ApplyClockUpdate(third, update))
	assert.False(t, m.CausallyReady(third))

	regress := types.ClockUpdate{
		{PeerID: other, PeerIndex: 1, MsgCount: 1},
	}
	err := m.ApplyClockUpdate(third, regress)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.ClockWentBackwards))
}

func TestIncrementSentMessages(t *testing.T) {
	m := newTestMatrix(self)
	assert.Equal(t, uint64(1), m.IncrementSentMessages())
	assert.Equal(t, uint64(2), m.IncrementSentMessages())
}

func TestProcessedIncomingMsgSequencing(t *testing.T) {
	m := newTestMatrix(self)
	require.NoError(t, m.ProcessedIncomingMsg(other, 1))
	require.NoError(t, m.ProcessedIncomingMsg(other, 2))

	err := m.ProcessedIncomingMsg(other, 4)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.MsgCountJumped))

	err = m.ProcessedIncomingMsg(other, 2)
	require.Error(t, err)
	assert.True(t, errs.OfKind(err, errs.MsgCountBackwards))
}

func TestCausallyReadyTreatsUnknownPeersAsZero(t *testing.T) {
	m := newTestMatrix(self)
	// Nothing known about other yet: local >= remote trivially for all
	// peers except other itself.
	assert.True(t, m.CausallyReady(other))
}

func TestCausallyReadyFalseWhenLocalBehind(t *testing.T) {
	m := newTestMatrix(self)
	// other claims to know 3rd has sent it 5 messages; locally we know 0.
	require.NoError(t, m.ApplyClockUpdate(other, types.ClockUpdate{
		{PeerID: third, PeerIndex: 1, MsgCount: 5},
	}))
	assert.False(t, m.CausallyReady(other))

	// Catch up one message at a time; readiness flips only on the last.
	for count := uint64(1); count <= 5; count++ {
		require.NoError(t, m.ProcessedIncomingMsg(third, count))
	}
	assert.True(t, m.CausallyReady(other))
}

func TestResetClockUpdateClearsPending(t *testing.T) {
	m := newTestMatrix(self)
	m.PeerIDToIndex(other)
	require.True(t, m.HasPendingClockUpdate())
	m.ResetClockUpdate()
	assert.False(t, m.HasPendingClockUpdate())
}
