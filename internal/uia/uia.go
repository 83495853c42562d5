// Package uia implements user-interactive authentication: a session state
// machine that gates sensitive operations behind a fresh credential proof.
// A caller configures the flows it requires; the gate tracks which stages a
// client has completed across requests and reports either a challenge to
// send back or the identities the completed stages proved.
package uia

import "context"

// Common stage types. The gate itself is agnostic to which stage types
// exist; anything with a registered Validator can appear in a flow.
const (
	StagePassword = "m.login.password"
	StageDummy    = "m.login.dummy"
)

// Flow is one acceptable combination of stages. A session is satisfied when
// every stage of at least one required flow has been completed.
type Flow struct {
	Stages []string `json:"stages"`
}

// PasswordFlow is the single-flow requirement used by destructive device
// operations: re-prove the base credential.
func PasswordFlow() []Flow {
	return []Flow{{Stages: []string{StagePassword}}}
}

// Validator checks the submitted proof for one stage type.
type Validator interface {
	// StageType returns the auth type this validator handles.
	StageType() string
	// Params returns stage-specific challenge parameters advertised to
	// clients, or nil if the stage has none.
	Params() map[string]interface{}
	// Validate checks the submitted auth dict. It returns the identity the
	// proof resolved to and ok=true on success, ok=false if the proof was
	// rejected. err is reserved for internal failures.
	Validate(ctx context.Context, auth map[string]interface{}) (identity string, ok bool, err error)
}

// Challenge is the 401 body sent to a client that has not yet completed a
// required flow.
type Challenge struct {
	Session   string                            `json:"session"`
	Flows     []Flow                            `json:"flows"`
	Params    map[string]map[string]interface{} `json:"params"`
	Completed []string                          `json:"completed,omitempty"`
	Errcode   string                            `json:"errcode,omitempty"`
	Error     string                            `json:"error,omitempty"`
}

// Result is the outcome of a gate check. Exactly one of Satisfied-with-
// Identities or Challenge applies.
type Result struct {
	Satisfied bool
	Session   string
	// Identities maps completed stage type to the identity that stage
	// proved. Only meaningful when Satisfied.
	Identities map[string]string
	// Challenge is set when not Satisfied.
	Challenge *Challenge
}
