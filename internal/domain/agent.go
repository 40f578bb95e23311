package domain

// AgentID identifies one of the automation agents coordinated by the
// orchestrator. The set is closed: routing is an explicit priority-ordered
// rule table, not open-ended dispatch.
type AgentID string

const (
	AgentPRReviewer         AgentID = "pr_reviewer"
	AgentIssueManager       AgentID = "issue_manager"
	AgentCommunityAssistant AgentID = "community_assistant"
	AgentCICD               AgentID = "cicd_agent"
)

// AllAgents lists every agent in default priority order (highest first).
// The community assistant outranks the issue manager so that mention-addressed
// comments are claimed before the generic comment handler sees them.
var AllAgents = []AgentID{
	AgentCommunityAssistant,
	AgentPRReviewer,
	AgentIssueManager,
	AgentCICD,
}

// AgentInfo describes a registered agent. Loaded from the built-in registry or
// an agents config file.
type AgentInfo struct {
	ID           AgentID  `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
}

// DefaultRegistry mirrors the agent registry the collaborating personas are
// deployed with.
var DefaultRegistry = []AgentInfo{
	{ID: AgentPRReviewer, Name: "PR Reviewer", Capabilities: []string{"code_review", "pr_analysis", "inline_comments"}},
	{ID: AgentIssueManager, Name: "Issue Manager", Capabilities: []string{"issue_classification", "labeling", "triage"}},
	{ID: AgentCommunityAssistant, Name: "Community Assistant", Capabilities: []string{"codebase_search", "qa", "documentation"}},
	{ID: AgentCICD, Name: "CI/CD Agent", Capabilities: []string{"build_monitoring", "failure_analysis", "deployment_tracking"}},
}

// Known reports whether id names a registered agent.
func Known(id AgentID) bool {
	for _, a := range AllAgents {
		if a == id {
			return true
		}
	}
	return false
}
