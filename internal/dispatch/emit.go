package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/smithy-go"
)

// Emitter delivers an outcome to the caller.
type Emitter interface {
	Emit(ctx context.Context, o *Outcome) error
}

// OutcomeEnvelope is the serialisable form of an outcome.
type OutcomeEnvelope struct {
	Status       string         `json:"status"` // "ok", "error" or "aborted"
	Operation    string         `json:"operation"`
	InvocationID string         `json:"invocation_id"`
	Result       any            `json:"result,omitempty"`
	Notes        map[string]any `json:"notes,omitempty"`
	Error        *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError carries the error code and message of a failed or aborted
// outcome.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope converts an outcome to its serialisable form.
func Envelope(o *Outcome) OutcomeEnvelope {
	env := OutcomeEnvelope{
		Operation:    o.Operation,
		InvocationID: o.InvocationID,
		Notes:        o.Notes,
	}

	switch o.Status {
	case Succeeded:
		env.Status = "ok"
		env.Result = o.Payload
	case Aborted:
		env.Status = "aborted"
		env.Error = &EnvelopeError{Code: CodeDeclined, Message: errMessage(o.Err, ErrDeclined)}
	default:
		env.Status = "error"
		env.Error = &EnvelopeError{Code: ErrorCode(o.Err), Message: errMessage(o.Err, errors.New("unknown failure"))}
	}
	return env
}

func errMessage(err, fallback error) string {
	if err == nil {
		return fallback.Error()
	}
	return err.Error()
}

// ErrorCode returns the envelope error code for err: the code of a typed
// dispatch error, the service error code of an API error, or
// REMOTE_SERVICE_ERROR.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	return CodeRemoteService
}

// JSONEmitter writes one envelope per outcome as JSON.
type JSONEmitter struct {
	Writer io.Writer
	Indent bool
}

func (e *JSONEmitter) Emit(ctx context.Context, o *Outcome) error {
	enc := json.NewEncoder(e.Writer)
	enc.SetEscapeHTML(false)
	if e.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(Envelope(o)); err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	return nil
}

// TextEmitter writes the payload of a successful outcome as indented JSON to
// Writer, and a one-line message for failures and aborts to ErrWriter.
type TextEmitter struct {
	Writer    io.Writer
	ErrWriter io.Writer
}

func (e *TextEmitter) Emit(ctx context.Context, o *Outcome) error {
	w := e.ErrWriter
	if w == nil {
		w = e.Writer
	}

	switch o.Status {
	case Succeeded:
		if o.Payload == nil {
			return nil
		}
		if s, ok := o.Payload.(string); ok {
			_, err := fmt.Fprintln(e.Writer, s)
			return err
		}
		bs, err := json.MarshalIndent(o.Payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		_, err = fmt.Fprintln(e.Writer, string(bs))
		return err
	case Aborted:
		_, err := fmt.Fprintf(w, "%s: aborted, operation was not confirmed\n", o.Operation)
		return err
	}
	_, err := fmt.Fprintf(w, "Error [%s]: %s\n", ErrorCode(o.Err), errMessage(o.Err, errors.New("unknown failure")))
	return err
}

// LogEmitter records outcomes as structured log entries.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e *LogEmitter) Emit(ctx context.Context, o *Outcome) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"operation", o.Operation,
		"invocation_id", o.InvocationID,
		"status", o.Status.String(),
	}
	if id, ok := o.Notes[NoteRequestID]; ok {
		attrs = append(attrs, "request_id", id)
	}

	switch o.Status {
	case Succeeded:
		logger.InfoContext(ctx, "operation succeeded", attrs...)
	case Aborted:
		logger.InfoContext(ctx, "operation aborted", attrs...)
	default:
		attrs = append(attrs, "error_code", ErrorCode(o.Err), "error", o.Err)
		logger.ErrorContext(ctx, "operation failed", attrs...)
	}
	return nil
}

// Note keys set by bound calls.
const (
	NoteRequestID = "RequestId"
	NoteDryRun    = "DryRun"
	NoteRequest   = "Request"
)
