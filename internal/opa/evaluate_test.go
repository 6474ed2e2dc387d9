package opa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

type TestPolicyOutput struct {
	Allowed bool `json:"allowed,omitempty"`
}

func TestEvaluate(t *testing.T) {
	policyFile, err := os.CreateTemp("", "test-policy-*.rego")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		policyFile.Close()
		os.Remove(policyFile.Name())
	}()

	policy := `
		package mock_policy
		result := {
			"allowed": input.operation == "GetApp"
		}
    `
	_, err = policyFile.WriteString(policy)
	if err != nil {
		t.Fatal(err)
	}
	policyFile.Close()

	testCases := []struct {
		name     string
		data     map[string]any
		expected bool
	}{
		{
			name:     "allow read operation",
			data:     map[string]any{"operation": "GetApp"},
			expected: true,
		},
		{
			name:     "deny other operation",
			data:     map[string]any{"operation": "DeleteApp"},
			expected: false,
		},
	}

	ctx := context.Background()

	p, err := ReadPolicy(policyFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	pp, err := PreparePolicy(ctx, "mock.rego", p, "data.mock_policy.result")
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Evaluate[TestPolicyOutput](ctx, pp, tc.data)
			if err != nil {
				t.Fatal(err)
			}
			if result.Allowed != tc.expected {
				t.Errorf("Test case %s failed: expected %v but got %v", tc.name, tc.expected, result)
			}
		})
	}
}

func TestPreparePolicy_InvalidPolicy(t *testing.T) {
	_, err := PreparePolicy(context.Background(), "broken.rego", "package broken\nresult := {", ConfirmationQuery)
	if err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestPolicyConfirmer(t *testing.T) {
	p, err := ReadPolicy(filepath.Join("..", "..", "fixtures", "confirm-policy.rego"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewPolicyConfirmer(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		operation string
		expected  bool
	}{
		{operation: "CreateSegment", expected: true},
		{operation: "UpdateEndpoint", expected: true},
		{operation: "DeleteApp", expected: false},
		{operation: "UpdateGcmChannel", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.operation, func(t *testing.T) {
			ok, err := c.Confirm(context.Background(), dispatch.ConfirmationRequest{
				InvocationID: "inv-1",
				Operation:    tc.operation,
				Targets:      []dispatch.Target{{Name: "ApplicationId", Value: "app-1"}},
			})
			if err != nil {
				t.Fatal(err)
			}
			if ok != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, ok)
			}
		})
	}
}

func TestPolicyConfirmer_UndefinedResult(t *testing.T) {
	c, err := NewPolicyConfirmer(context.Background(), `
		package pinpoint_confirmation_policy
		result := {"action": "allow"} if { input.operation == "GetApp" }
	`)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := c.Confirm(context.Background(), dispatch.ConfirmationRequest{Operation: "DeleteApp"})
	if !errors.Is(err, ErrUndefined) {
		t.Errorf("expected ErrUndefined, got %v", err)
	}
	if ok {
		t.Error("expected undefined result to decline")
	}
}

func TestReadPolicy_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rego")
	if err := os.WriteFile(path, []byte("\n  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPolicy(path); err == nil {
		t.Error("expected error for empty policy file")
	}
}
