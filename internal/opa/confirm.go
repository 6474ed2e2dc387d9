package opa

import (
	"context"
	"log/slog"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

// ConfirmationQuery is the rego query a confirmation policy must answer.
const ConfirmationQuery = "data.pinpoint_confirmation_policy.result"

// ConfirmationDecision is the result shape of a confirmation policy.
type ConfirmationDecision struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// PolicyConfirmer answers confirmation requests with a rego policy, for
// unattended runs. Only an "allow" action confirms.
type PolicyConfirmer struct {
	policy *PreparedPolicy
}

func NewPolicyConfirmer(ctx context.Context, policy string) (*PolicyConfirmer, error) {
	pp, err := PreparePolicy(ctx, "confirmation.rego", policy, ConfirmationQuery)
	if err != nil {
		return nil, err
	}
	return &PolicyConfirmer{policy: pp}, nil
}

func (c *PolicyConfirmer) Confirm(ctx context.Context, req dispatch.ConfirmationRequest) (bool, error) {
	decision, err := Evaluate[ConfirmationDecision](ctx, c.policy, req)
	if err != nil {
		return false, err
	}

	if decision.Action != "allow" {
		slog.InfoContext(ctx, "confirmation policy declined operation",
			"operation", req.Operation,
			"invocation_id", req.InvocationID,
			"action", decision.Action,
			"reason", decision.Reason,
		)
		return false, nil
	}
	return true, nil
}
