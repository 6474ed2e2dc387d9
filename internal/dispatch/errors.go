package dispatch

import (
	"errors"
	"fmt"
)

// Error codes reported in outcome envelopes.
const (
	CodeUnknownParameter    = "UNKNOWN_PARAMETER"
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeDuplicateParameter  = "DUPLICATE_PARAMETER"
	CodeInvalidSelect       = "INVALID_SELECT"
	CodeTransportResolution = "TRANSPORT_RESOLUTION"
	CodeRemoteService       = "REMOTE_SERVICE_ERROR"
	CodeDeclined            = "DECLINED"
)

// ErrDeclined marks an invocation the operator declined at the confirmation
// gate. It is carried by Aborted outcomes and is never a failure.
var ErrDeclined = errors.New("operation declined")

// UnknownParameterError is returned when an argument does not match any
// parameter of the descriptor.
type UnknownParameterError struct {
	Operation string
	Name      string
	// Position is the zero-based index of an unmatched positional argument,
	// or -1 for named arguments.
	Position int
}

func (e *UnknownParameterError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("operation %s: no parameter accepts positional argument %d", e.Operation, e.Position)
	}
	return fmt.Sprintf("operation %s: unknown parameter %q", e.Operation, e.Name)
}

func (e *UnknownParameterError) Code() string { return CodeUnknownParameter }

// TypeMismatchError is returned when a supplied value cannot be coerced to
// the parameter's semantic type.
type TypeMismatchError struct {
	Operation string
	Parameter string
	Type      ParameterType
	Value     any
	Err       error
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("operation %s: parameter %s expects %s, got %T", e.Operation, e.Parameter, e.Type, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }

func (e *TypeMismatchError) Code() string { return CodeTypeMismatch }

// DuplicateParameterError is returned when one parameter is bound more than
// once, for example by name and by position.
type DuplicateParameterError struct {
	Operation string
	Parameter string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("operation %s: parameter %s supplied more than once", e.Operation, e.Parameter)
}

func (e *DuplicateParameterError) Code() string { return CodeDuplicateParameter }

// SelectError is returned for a select expression that cannot be applied.
type SelectError struct {
	Operation  string
	Expression string
}

func (e *SelectError) Error() string {
	return fmt.Sprintf("operation %s: unsupported select expression %q", e.Operation, e.Expression)
}

func (e *SelectError) Code() string { return CodeInvalidSelect }

// TransportResolutionError wraps a failure to reach the remote endpoint with
// the endpoint and region the call was configured for.
type TransportResolutionError struct {
	Service  string
	Endpoint string
	Region   string
	Err      error
}

func (e *TransportResolutionError) Error() string {
	region := e.Region
	if region == "" {
		region = "(unset)"
	}
	return fmt.Sprintf("unable to reach %s endpoint %s in region %s, check the configured endpoint URL and region: %v",
		e.Service, e.Endpoint, region, e.Err)
}

func (e *TransportResolutionError) Unwrap() error { return e.Err }

func (e *TransportResolutionError) Code() string { return CodeTransportResolution }
