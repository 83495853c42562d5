package uia

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumen-im/server/internal/api"
)

// Gate validates that a request has recently proven one complete flow of
// credential stages. It owns no policy about which flows are required; the
// caller supplies those per check.
type Gate struct {
	store      SessionStore
	validators map[string]Validator
}

// NewGate creates a Gate using the given session store and stage validators.
func NewGate(store SessionStore, validators ...Validator) *Gate {
	byType := make(map[string]Validator, len(validators))
	for _, v := range validators {
		byType[v.StageType()] = v
	}
	return &Gate{store: store, validators: byType}
}

// Check runs one step of the interactive-auth state machine. auth is the
// client-submitted auth dict (nil or empty when the client has not started),
// carrying an optional "session" id and an optional stage proof keyed by
// "type". The returned Result is either Satisfied with the identities each
// completed stage proved, or a Challenge to return to the client with a 401.
//
// Satisfied is monotonic: once a session has met one of the required flows,
// every later check against that session returns Satisfied with the same
// accumulated identities.
func (g *Gate) Check(ctx context.Context, flows []Flow, auth map[string]interface{}, clientIP string) (*Result, error) {
	if len(flows) == 0 {
		return nil, fmt.Errorf("uia: no flows configured")
	}

	sessionID, _ := auth["session"].(string)
	stageType, _ := auth["type"].(string)

	if sessionID == "" {
		// A stage proof with no session to attach it to is malformed, not
		// merely unauthenticated.
		if stageType != "" {
			return nil, api.BadJSON("auth stage supplied without a session")
		}
		sess, err := g.store.Create(ctx, clientIP)
		if err != nil {
			return nil, fmt.Errorf("create auth session: %w", err)
		}
		return g.challenge(sess, flows, ""), nil
	}

	sess, err := g.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		// Unknown or expired session: issue a fresh challenge rather than a
		// dead end. Any submitted proof is dropped with it.
		sess, err = g.store.Create(ctx, clientIP)
		if err != nil {
			return nil, fmt.Errorf("create auth session: %w", err)
		}
		return g.challenge(sess, flows, ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load auth session: %w", err)
	}

	if satisfied := g.satisfied(sess, flows); satisfied != nil {
		return satisfied, nil
	}

	if stageType == "" {
		return g.challenge(sess, flows, ""), nil
	}

	validator, ok := g.validators[stageType]
	if !ok {
		return nil, api.BadJSON(fmt.Sprintf("unrecognized auth type %q", stageType))
	}

	identity, ok, err := validator.Validate(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("validate %s stage: %w", stageType, err)
	}
	if !ok {
		// Rejected proof: the stage is not recorded, progress on other
		// stages is untouched, and the client may retry.
		return g.challenge(sess, flows, "invalid credentials"), nil
	}

	sess, err = g.store.RecordStage(ctx, sess.ID, stageType, identity)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Session expired between lookup and record; start over.
			sess, err = g.store.Create(ctx, clientIP)
			if err != nil {
				return nil, fmt.Errorf("create auth session: %w", err)
			}
			return g.challenge(sess, flows, ""), nil
		}
		return nil, fmt.Errorf("record %s stage: %w", stageType, err)
	}

	if satisfied := g.satisfied(sess, flows); satisfied != nil {
		return satisfied, nil
	}
	return g.challenge(sess, flows, ""), nil
}

// satisfied returns a Satisfied result if any required flow is fully present
// in the session's completed stages, else nil.
func (g *Gate) satisfied(sess *Session, flows []Flow) *Result {
	for _, flow := range flows {
		if sess.HasCompleted(flow) {
			return &Result{
				Satisfied:  true,
				Session:    sess.ID,
				Identities: sess.Completed,
			}
		}
	}
	return nil
}

func (g *Gate) challenge(sess *Session, flows []Flow, failure string) *Result {
	params := make(map[string]map[string]interface{})
	for _, flow := range flows {
		for _, stage := range flow.Stages {
			if v, ok := g.validators[stage]; ok {
				if p := v.Params(); p != nil {
					params[stage] = p
				}
			}
		}
	}

	completed := make([]string, 0, len(sess.Completed))
	for stage := range sess.Completed {
		completed = append(completed, stage)
	}

	ch := &Challenge{
		Session:   sess.ID,
		Flows:     flows,
		Params:    params,
		Completed: completed,
	}
	if failure != "" {
		ch.Errcode = api.CodeForbidden
		ch.Error = failure
	}
	return &Result{Session: sess.ID, Challenge: ch}
}
