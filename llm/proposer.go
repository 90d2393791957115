package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/metacogma/edc-rule-validator-sub000/adversarial"
	"github.com/metacogma/edc-rule-validator-sub000/model"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

// proposalCount is how many mutation scenarios the collaborator is asked for.
const proposalCount = 3

// Completer is the subset of Client the proposer needs.
// Satisfied by *Client and by testutil.MockLLMClient.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Proposer asks a text-generation model for rule mutation scenarios and
// adapts the replies to the adversarial generator's contract. Replies
// that cannot be parsed yield zero proposals, never an error, so a
// misbehaving model only loses its own strategy.
type Proposer struct {
	client Completer
	logger *slog.Logger
}

// ProposerOption configures a Proposer.
type ProposerOption func(*Proposer)

// WithProposerLogger sets the structured logger.
func WithProposerLogger(logger *slog.Logger) ProposerOption {
	return func(p *Proposer) { p.logger = logger }
}

// NewProposer creates a mutation proposer backed by the given client.
func NewProposer(client Completer, opts ...ProposerOption) *Proposer {
	p := &Proposer{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ adversarial.MutationProposer = (*Proposer)(nil)

// proposalReply is the JSON contract the model is asked to produce.
type proposalReply struct {
	TestCases []struct {
		Description    string         `json:"description"`
		ExpectedResult bool           `json:"expected_result"`
		TestData       rules.TestData `json:"test_data"`
	} `json:"test_cases"`
}

// ProposeMutations implements adversarial.MutationProposer.
func (p *Proposer) ProposeMutations(ctx context.Context, rule *rules.Rule, spec *rules.Specification) ([]adversarial.Proposal, error) {
	temp := 0.7
	resp, err := p.client.Complete(ctx, Request{
		Capability: model.CapabilityMutation.String(),
		Messages: []Message{
			{Role: "system", Content: proposerSystemPrompt},
			{Role: "user", Content: buildProposalPrompt(rule, spec)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("complete mutation request: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	if raw == "" {
		p.logger.Debug("no JSON object in mutation reply",
			"rule_id", rule.ID, "model", resp.Model)
		return nil, nil
	}

	var reply proposalReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		p.logger.Debug("unparseable mutation reply",
			"rule_id", rule.ID, "model", resp.Model, "error", err)
		return nil, nil
	}

	proposals := make([]adversarial.Proposal, 0, len(reply.TestCases))
	for _, tc := range reply.TestCases {
		proposals = append(proposals, adversarial.Proposal{
			Description:    tc.Description,
			ExpectedResult: tc.ExpectedResult,
			TestData:       tc.TestData,
		})
	}
	return proposals, nil
}

const proposerSystemPrompt = `You are a clinical data management expert ` +
	`who stress-tests edit-check rules. You respond with a single JSON ` +
	`object and nothing else.`

// buildProposalPrompt renders the rule and the relevant slice of the
// study specification into the mutation request.
func buildProposalPrompt(rule *rules.Rule, spec *rules.Specification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Edit-check rule %s:\n", rule.ID)
	fmt.Fprintf(&b, "  condition: %s\n", rule.EffectiveCondition())
	if rule.Message != "" {
		fmt.Fprintf(&b, "  message: %s\n", rule.Message)
	}

	b.WriteString("\nStudy fields:\n")
	for _, form := range sortedForms(spec) {
		for _, field := range form.Fields {
			fmt.Fprintf(&b, "  %s.%s (%s)", form.Name, field.Name, field.Type)
			if len(field.ValidValues) > 0 {
				fmt.Fprintf(&b, " valid: %s", strings.Join(field.ValidValues, ", "))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, `
Propose %d adversarial test cases that could expose defects in this rule:
subtle boundary violations, unusual but clinically plausible value
combinations, and data-entry mistakes the rule should catch. For each
case state whether the rule condition should evaluate to true.

Respond with exactly this JSON shape:
{"test_cases": [{"description": "...", "expected_result": true,
"test_data": {"FormName": {"FieldName": "value"}}}]}
`, proposalCount)

	return b.String()
}

func sortedForms(spec *rules.Specification) []*rules.Form {
	forms := make([]*rules.Form, 0, len(spec.Forms))
	for _, f := range spec.Forms {
		forms = append(forms, f)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].Name < forms[j].Name })
	return forms
}
