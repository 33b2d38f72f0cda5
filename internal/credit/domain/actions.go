package domain

import "strings"

type ActionType string

const (
	ActionGeneratePlaybook    ActionType = "generate_playbook"
	ActionAnalyzeAccount      ActionType = "analyze_account"
	ActionBuildICP            ActionType = "build_icp"
	ActionExtractEmailSignals ActionType = "extract_email_signals"
	ActionDraftEmail          ActionType = "draft_email"
	ActionCallPrep            ActionType = "call_prep"
)

type ActionCost struct {
	Action ActionType `json:"action"`
	Cost   int        `json:"cost"`
	Label  string     `json:"label"`
}

var actionCosts = []ActionCost{
	{Action: ActionGeneratePlaybook, Cost: 5, Label: "Playbook Generation"},
	{Action: ActionAnalyzeAccount, Cost: 2, Label: "Account Gap Analysis"},
	{Action: ActionBuildICP, Cost: 3, Label: "ICP Builder"},
	{Action: ActionExtractEmailSignals, Cost: 1, Label: "Email Signal Extraction"},
	{Action: ActionDraftEmail, Cost: 1, Label: "Email Draft"},
	{Action: ActionCallPrep, Cost: 2, Label: "Call Preparation Brief"},
}

// ActionCosts returns the cost table in display order. The slice is a copy.
func ActionCosts() []ActionCost {
	out := make([]ActionCost, len(actionCosts))
	copy(out, actionCosts)
	return out
}

func LookupAction(s string) (ActionCost, bool) {
	action := ActionType(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range actionCosts {
		if c.Action == action {
			return c, true
		}
	}
	return ActionCost{}, false
}
