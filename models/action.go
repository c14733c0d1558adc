package models

import "time"

// Steps recorded in the authentication action log.
const (
	StepCookieAttempt     = "cookie_attempt"
	StepFormLogin         = "form_login"
	StepFieldDetect       = "field_detect"
	StepCredentialsSubmit = "credentials_submit"
	StepTargetVerify      = "target_verify"
)

// Action is one entry in the append-only diagnostic trail of an
// authentication attempt. It is never mutated after append.
type Action struct {
	Step      string            `json:"step"`
	Success   bool              `json:"success"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewAction creates a timestamped Action.
func NewAction(step string, success bool, data map[string]string) Action {
	return Action{
		Step:      step,
		Success:   success,
		Timestamp: time.Now(),
		Data:      data,
	}
}
