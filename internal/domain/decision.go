package domain

import (
	"time"
)

// Reason codes attached to routing decisions. Short, stable strings so
// collaborators can pattern-match the decision log.
const (
	ReasonPROpened        = "pr_opened"
	ReasonIssueOpened     = "issue_opened"
	ReasonWorkflowRun     = "workflow_run"
	ReasonMention         = "mention"
	ReasonMentionPriority = "mention_priority"
	ReasonCommentDefault  = "comment_default"
	ReasonBotActor        = "bot_actor"
	ReasonSkipMarker      = "skip_marker"
	ReasonMalformedEvent  = "malformed_event"
	ReasonNoMatchingAgent = "no_matching_agent"
)

// Exclusion records an agent whose trigger matched but was suppressed.
type Exclusion struct {
	Agent  AgentID `json:"agent"`
	Reason string  `json:"reason"`
}

// RoutingDecision is the router's output for one event. An empty TargetAgents
// means the event is recorded and dropped; that is not an error.
//
// Invariant: TargetAgents never contains an agent that also appears in
// ExcludedAgents — exclusion always wins.
type RoutingDecision struct {
	TargetAgents   []AgentID   `json:"target_agents"`
	Reason         string      `json:"reason"`
	ExcludedAgents []Exclusion `json:"excluded_agents,omitempty"`
}

// Targets reports whether the decision routes to the given agent.
func (d RoutingDecision) Targets(agent AgentID) bool {
	for _, a := range d.TargetAgents {
		if a == agent {
			return true
		}
	}
	return false
}

// DecisionLogEntry is one append-only record of a routing decision or agent
// action. SequenceNo is strictly increasing and gapless within a single
// orchestrator instance.
type DecisionLogEntry struct {
	SequenceNo int64           `json:"sequence_no"`
	EventRef   string          `json:"event_ref"`
	EntityRef  string          `json:"entity_ref"`
	Decision   RoutingDecision `json:"decision"`
	Timestamp  time.Time       `json:"timestamp"`
}
