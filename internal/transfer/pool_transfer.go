package transfer

type RotatePoolRequest struct {
	Trigger string `json:"trigger,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// RotateBackoffRequest runs the rotation on the task queue when Async is set.
type RotateBackoffRequest struct {
	MaxAttempts int  `json:"max_attempts,omitempty"`
	Async       bool `json:"async,omitempty"`
}
