package uia

import "context"

// DummyValidator accepts any submission for the m.login.dummy stage. It
// exists so a flow can be padded to force the client through the UIA round
// trip without demanding a real credential.
type DummyValidator struct{}

func (DummyValidator) StageType() string { return StageDummy }

func (DummyValidator) Params() map[string]interface{} { return nil }

func (DummyValidator) Validate(ctx context.Context, auth map[string]interface{}) (string, bool, error) {
	return "", true, nil
}
