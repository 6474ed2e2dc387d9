package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/templates"
)

// Target is one identity value shown to the operator.
type Target struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfirmationRequest describes a pending mutating invocation.
type ConfirmationRequest struct {
	InvocationID string   `json:"invocationId"`
	Operation    string   `json:"operation"`
	Command      string   `json:"command"`
	Targets      []Target `json:"targets"`
	Message      string   `json:"message"`
}

// Confirmer decides whether a mutating invocation may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, req ConfirmationRequest) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	return f(ctx, req)
}

// StaticConfirmer answers every request the same way. It is the unattended
// confirmer used when no operator or policy is available.
type StaticConfirmer struct {
	Answer bool
}

func (c StaticConfirmer) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	return c.Answer, nil
}

// TerminalConfirmer prompts an operator on Out and reads the answer from In.
// Anything other than y or yes declines.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	fmt.Fprintln(c.Out, "Are you sure you want to perform this action?")
	fmt.Fprintln(c.Out, req.Message)
	fmt.Fprint(c.Out, `[Y] Yes  [N] No (default is "N"): `)

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// confirmationRequest renders the prompt for a bound invocation. Sensitive
// parameters are never identity parameters, so targets never carry secrets.
func confirmationRequest(id string, desc *Descriptor, ictx *InvocationContext) (ConfirmationRequest, error) {
	req := ConfirmationRequest{
		InvocationID: id,
		Operation:    desc.Name,
		Command:      desc.Command,
	}

	data := templates.ConfirmationData{
		Operation: desc.Name,
		Command:   desc.Command,
		Targets:   make(map[string]string, len(desc.Identity)),
	}

	var values []string
	for _, name := range desc.Identity {
		p, _ := desc.Parameter(name)
		v, ok := ictx.Value(p.Name)
		if !ok {
			continue
		}
		s := fmt.Sprint(v)
		req.Targets = append(req.Targets, Target{Name: p.Name, Value: s})
		data.Targets[p.Name] = s
		values = append(values, s)
	}

	data.Target = strings.Join(values, ", ")
	if data.Target == "" {
		data.Target = desc.Name
	}

	msg, err := templates.RenderConfirmation(desc.ConfirmMessage, data)
	if err != nil {
		return req, err
	}
	req.Message = msg
	return req, nil
}

// confirm runs the gate. It returns true when the invocation may proceed.
func confirm(ctx context.Context, c Confirmer, req ConfirmationRequest) bool {
	ok, err := c.Confirm(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "confirmation failed, treating as declined",
			"operation", req.Operation,
			"invocation_id", req.InvocationID,
			"error", err,
		)
		return false
	}
	return ok
}
