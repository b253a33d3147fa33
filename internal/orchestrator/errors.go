package orchestrator

import "fmt"

// ValidationError reports a length or variable-constraint failure. The
// caller may correct the input and retry.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SecurityBlockedError reports a classifier or upstream content-block
// verdict. Its message is deliberately generic; the detailed reason and
// matched text live only in the audit trail so callers cannot use error
// text to probe the rule set.
type SecurityBlockedError struct {
	// Trace carries the upstream guardrail assessment when the block came
	// from the provider.
	Trace any
}

func (e *SecurityBlockedError) Error() string {
	return "request blocked by security policy"
}

// ServiceError reports a transport or provider failure. Retryable by the
// caller; each retry is an independent transaction.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service unavailable: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ConfigurationError reports a bad reference such as an unknown template
// id. Handled like a validation failure.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
