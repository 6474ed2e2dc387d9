// Package opa evaluates rego v1 policies that make unattended decisions for
// the dispatcher.
package opa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// ErrUndefined is returned when a policy produces no value for its query.
var ErrUndefined = errors.New("policy result is undefined")

// PreparedPolicy is a compiled policy module bound to one query.
type PreparedPolicy struct {
	name  string
	query rego.PreparedEvalQuery
}

// PreparePolicy compiles source as the module name and prepares query for
// repeated evaluation.
func PreparePolicy(ctx context.Context, name, source, query string) (*PreparedPolicy, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module(name, source),
		rego.SetRegoVersion(ast.RegoV1),
	)

	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy %s: %w", name, err)
	}

	return &PreparedPolicy{name: name, query: pq}, nil
}

// Evaluate runs pp against input and decodes the first result into T using
// its json tags.
func Evaluate[T any](ctx context.Context, pp *PreparedPolicy, input any) (*T, error) {
	rs, err := pp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy %s: %w", pp.name, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("policy %s: %w", pp.name, ErrUndefined)
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy result decoder: %w", err)
	}
	if err := dec.Decode(rs[0].Expressions[0].Value); err != nil {
		return nil, fmt.Errorf("unexpected result from policy %s: %w", pp.name, err)
	}

	return &out, nil
}

// ReadPolicy loads a policy module from disk.
func ReadPolicy(path string) (string, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}
	if strings.TrimSpace(string(p)) == "" {
		return "", fmt.Errorf("policy file %s is empty", path)
	}

	return string(p), nil
}
