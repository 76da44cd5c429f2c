package chartdata

import "fmt"

const (
	CodeValidation         = "VALIDATION"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackendStatus      = "BACKEND_STATUS"
	CodeBackendTimeout     = "BACKEND_TIMEOUT"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeRenderFailure      = "RENDER_FAILURE"
	CodeSnapshotNotFound   = "SNAPSHOT_NOT_FOUND"
	CodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError. Other packages use it so every failure that
// reaches the API carries one of the codes above.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Result is the body of GET data/chart.
type Result struct {
	Field        string    `json:"field"`
	Time         []string  `json:"time"`
	Values       []float64 `json:"values"`
	ResponseTime float64   `json:"responseTime"`
}
