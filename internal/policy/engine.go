// Package policy decides which roles may perform which actions, using an
// embedded OPA Rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Actions checked by the API.
const (
	ActionJobsCreate      = "jobs:create"
	ActionProposalsCreate = "proposals:create"
	ActionProposalsDecide = "proposals:decide"
	ActionUsersList       = "users:list"
	ActionUsersManage     = "users:manage"
	ActionTicketsCreate   = "tickets:create"
	ActionTicketsList     = "tickets:list"
	ActionActivitiesList  = "activities:list"
	ActionMessagesSend    = "messages:send"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent for evaluation. The module must define
// data.hubfreelance.authz.allow.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.hubfreelance.authz.allow"),
		rego.Module("authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Allow reports whether role may perform action.
func (e *Engine) Allow(ctx context.Context, role, action string) (bool, error) {
	input := map[string]interface{}{
		"role":   role,
		"action": action,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", results[0].Expressions[0].Value)
	}
	return allowed, nil
}

// DefaultPolicy grants each role its marketplace actions. Admin may do
// anything.
const DefaultPolicy = `
package hubfreelance.authz

default allow = false

allow {
	input.role == "admin"
}

allow {
	some i
	grants[input.role][i] == input.action
}

grants = {
	"client": ["jobs:create", "proposals:decide", "messages:send", "tickets:create", "activities:list"],
	"freelancer": ["proposals:create", "messages:send", "tickets:create", "activities:list"],
	"support": ["users:list", "tickets:list", "tickets:create", "messages:send", "activities:list"],
	"qa": ["users:list", "tickets:list", "tickets:create", "activities:list"]
}
`
