package uia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-im/server/internal/api"
)

// fakeValidator accepts or rejects every proof for its stage type.
type fakeValidator struct {
	stage    string
	identity string
	accept   bool
}

func (v *fakeValidator) StageType() string { return v.stage }
func (v *fakeValidator) Params() map[string]interface{} { return nil }
func (v *fakeValidator) Validate(ctx context.Context, auth map[string]interface{}) (string, bool, error) {
	return v.identity, v.accept, nil
}

func newTestGate(validators ...Validator) *Gate {
	return NewGate(NewMemStore(time.Minute), validators...)
}

func passwordProof(session string) map[string]interface{} {
	return map[string]interface{}{"session": session, "type": StagePassword}
}

func TestCheck_NoSessionNoProofReturnsChallenge(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, identity: "u1", accept: true})

	result, err := gate.Check(context.Background(), PasswordFlow(), nil, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, result.Satisfied)
	require.NotNil(t, result.Challenge)
	assert.NotEmpty(t, result.Challenge.Session)
	assert.Equal(t, PasswordFlow(), result.Challenge.Flows)
	assert.Empty(t, result.Challenge.Completed)
}

func TestCheck_ProofWithoutSessionIsProtocolError(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, identity: "u1", accept: true})

	_, err := gate.Check(context.Background(), PasswordFlow(), map[string]interface{}{"type": StagePassword}, "")
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.CodeBadJSON, apiErr.Code)
}

func TestCheck_StaleSessionGetsFreshChallenge(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, identity: "u1", accept: true})

	// Unknown session id, even with a proof attached: new session, no dead end.
	result, err := gate.Check(context.Background(), PasswordFlow(), passwordProof("no-such-session"), "")
	require.NoError(t, err)
	require.False(t, result.Satisfied)
	require.NotNil(t, result.Challenge)
	assert.NotEqual(t, "no-such-session", result.Challenge.Session)
}

func TestCheck_AcceptedProofSatisfiesFlow(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, identity: "user-a", accept: true})
	ctx := context.Background()

	first, err := gate.Check(ctx, PasswordFlow(), nil, "")
	require.NoError(t, err)
	session := first.Challenge.Session

	second, err := gate.Check(ctx, PasswordFlow(), passwordProof(session), "")
	require.NoError(t, err)
	require.True(t, second.Satisfied)
	assert.Equal(t, "user-a", second.Identities[StagePassword])
	assert.Equal(t, session, second.Session)
}

func TestCheck_SatisfiedIsMonotonic(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, identity: "user-a", accept: true})
	ctx := context.Background()

	first, err := gate.Check(ctx, PasswordFlow(), nil, "")
	require.NoError(t, err)
	session := first.Challenge.Session

	_, err = gate.Check(ctx, PasswordFlow(), passwordProof(session), "")
	require.NoError(t, err)

	// Replaying the session id never yields a challenge again, with or
	// without a fresh proof attached.
	for _, auth := range []map[string]interface{}{
		{"session": session},
		passwordProof(session),
	} {
		result, err := gate.Check(ctx, PasswordFlow(), auth, "")
		require.NoError(t, err)
		assert.True(t, result.Satisfied)
		assert.Equal(t, "user-a", result.Identities[StagePassword])
	}
}

func TestCheck_RejectedProofKeepsRecordedProgress(t *testing.T) {
	flows := []Flow{{Stages: []string{StagePassword, StageDummy}}}
	pwd := &fakeValidator{stage: StagePassword, identity: "user-a", accept: true}
	dummy := &fakeValidator{stage: StageDummy, accept: false}
	gate := newTestGate(pwd, dummy)
	ctx := context.Background()

	first, err := gate.Check(ctx, flows, nil, "")
	require.NoError(t, err)
	session := first.Challenge.Session

	result, err := gate.Check(ctx, flows, passwordProof(session), "")
	require.NoError(t, err)
	require.False(t, result.Satisfied)
	assert.Contains(t, result.Challenge.Completed, StagePassword)

	// A failed dummy stage must not destroy the recorded password stage.
	result, err = gate.Check(ctx, flows, map[string]interface{}{"session": session, "type": StageDummy}, "")
	require.NoError(t, err)
	require.False(t, result.Satisfied)
	assert.Contains(t, result.Challenge.Completed, StagePassword)
	assert.Equal(t, api.CodeForbidden, result.Challenge.Errcode)

	dummy.accept = true
	result, err = gate.Check(ctx, flows, map[string]interface{}{"session": session, "type": StageDummy}, "")
	require.NoError(t, err)
	assert.True(t, result.Satisfied)
	assert.Equal(t, "user-a", result.Identities[StagePassword])
}

func TestCheck_UnrecognizedStageType(t *testing.T) {
	gate := newTestGate(&fakeValidator{stage: StagePassword, accept: true})
	ctx := context.Background()

	first, err := gate.Check(ctx, PasswordFlow(), nil, "")
	require.NoError(t, err)

	_, err = gate.Check(ctx, PasswordFlow(), map[string]interface{}{
		"session": first.Challenge.Session,
		"type":    "m.login.carrier-pigeon",
	}, "")
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.CodeBadJSON, apiErr.Code)
}

// countingValidator proves a different identity on every call, so a lost or
// duplicated stage recording is visible as identity disagreement.
type countingValidator struct {
	stage string
	calls atomic.Int64
}

func (v *countingValidator) StageType() string { return v.stage }
func (v *countingValidator) Params() map[string]interface{} { return nil }
func (v *countingValidator) Validate(ctx context.Context, auth map[string]interface{}) (string, bool, error) {
	n := v.calls.Add(1)
	return fmt.Sprintf("identity-%d", n), true, nil
}

func TestCheck_ConcurrentStageCompletionRecordsExactlyOnce(t *testing.T) {
	validator := &countingValidator{stage: StagePassword}
	gate := newTestGate(validator)
	ctx := context.Background()

	first, err := gate.Check(ctx, PasswordFlow(), nil, "")
	require.NoError(t, err)
	session := first.Challenge.Session

	const workers = 16
	results := make([]*Result, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gate.Check(ctx, PasswordFlow(), passwordProof(session), "")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Every racer observes the satisfied state, and all observe the single
	// recorded identity: exactly one write won.
	winner := results[0].Identities[StagePassword]
	require.NotEmpty(t, winner)
	for _, result := range results {
		require.True(t, result.Satisfied)
		assert.Equal(t, winner, result.Identities[StagePassword])
	}
}

func TestCheck_NoFlowsConfigured(t *testing.T) {
	gate := newTestGate()
	_, err := gate.Check(context.Background(), nil, nil, "")
	require.Error(t, err)
}
