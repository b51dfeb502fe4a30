package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleHappyPathAdvancesThroughEveryState(t *testing.T) {
	var l Lifecycle
	assert.Equal(t, Assembled, l.State())

	require.NoError(t, l.MarkPayloadExtracted())
	assert.Equal(t, PayloadExtracted, l.State())

	require.NoError(t, l.BeginSigning())
	assert.Equal(t, Signing, l.State())

	require.NoError(t, l.MarkSigned())
	assert.Equal(t, Signed, l.State())

	require.NoError(t, l.BeginBroadcasting())
	assert.Equal(t, Broadcasting, l.State())

	require.NoError(t, l.MarkBroadcast())
	assert.Equal(t, Broadcast, l.State())
}

func TestLifecycleBeginSigningIsIdempotentForMultiPayloadTransactions(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.MarkPayloadExtracted())

	require.NoError(t, l.BeginSigning())
	require.NoError(t, l.BeginSigning(), "a second input's signing attempt must not trip the guard")
	require.NoError(t, l.MarkSigned())
	require.NoError(t, l.MarkSigned(), "a second input's terminal-success parse must not trip the guard")
	assert.Equal(t, Signed, l.State())
}

func TestLifecycleRejectsBroadcastingBeforeSigned(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.MarkPayloadExtracted())

	err := l.BeginBroadcasting()
	require.Error(t, err)
	assert.Equal(t, PayloadExtracted, l.State(), "a rejected transition must not move the state")
}

func TestLifecycleRejectsSignedWithoutSigning(t *testing.T) {
	var l Lifecycle
	err := l.MarkSigned()
	require.Error(t, err)
	assert.Equal(t, Assembled, l.State())
}

func TestLifecycleMarkFailedOverridesAnyState(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.MarkPayloadExtracted())
	require.NoError(t, l.BeginSigning())

	l.MarkFailed()
	assert.Equal(t, Failed, l.State())
}

func TestStateStringCoversEveryValue(t *testing.T) {
	for state, want := range map[State]string{
		Assembled:        "assembled",
		PayloadExtracted: "payload_extracted",
		Signing:          "signing",
		Signed:           "signed",
		Broadcasting:     "broadcasting",
		Broadcast:        "broadcast",
		Failed:           "failed",
	} {
		assert.Equal(t, want, state.String())
	}
	assert.Equal(t, "unknown", State(99).String())
}
