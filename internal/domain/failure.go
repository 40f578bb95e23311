package domain

// FailureType classifies a build failure.
type FailureType string

const (
	FailureTest       FailureType = "test_failure"
	FailureCompile    FailureType = "compile_error"
	FailureDependency FailureType = "dependency_error"
	FailureTimeout    FailureType = "timeout"
	FailureUnknown    FailureType = "unknown"
)

// FailureReport is the bounded, structured summary of one build log.
type FailureReport struct {
	FailureType   FailureType `json:"failure_type"`
	Evidence      string      `json:"evidence,omitempty"`
	HeadBytesKept int         `json:"head_bytes_kept"`
	TailBytesKept int         `json:"tail_bytes_kept"`
	Truncated     bool        `json:"truncated"`

	FailedStep   string   `json:"failed_step,omitempty"`
	ErrorDetails []string `json:"error_details,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Severity     string   `json:"severity"`
}
