// Package apierror holds the JSON error envelopes written by handlers and
// middleware. Internal causes never reach the body.
package apierror

// Machine-readable codes for reconciliation failures. Clients branch on
// these; Detail is for people.
const (
	CodeInvalidInput         = "invalid_input"
	CodeUnknownProduct       = "unknown_product"
	CodeNoActiveSession      = "no_active_session"
	CodeSessionAlreadyOpen   = "session_already_open"
	CodeSessionAlreadyActive = "session_already_active"
	CodeCommitInProgress     = "commit_in_progress"
	CodeConfirmationRequired = "confirmation_required"
	CodePartialCommit        = "partial_commit"
	CodeStorageUnavailable   = "storage_unavailable"
)

// APIError is the envelope for every 4xx/5xx response.
type APIError struct {
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithCode builds an envelope carrying one of the Code* constants.
func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// ValidationError reports per-field validator tags.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeInvalidInput, Detail: "Error de validacion", Fields: fields}
}
