// Package router classifies incoming repository events and decides which
// agent handles each one. Routing is pure: the ingest service owns the
// decision-log append and any enqueueing.
package router

import (
	"regexp"
	"strings"

	"repogent.app/orchestrator/internal/domain"
)

const (
	DefaultMentionToken    = "@repogent"
	DefaultSkipMarkerToken = "[repogent-skip:"

	// DefaultBotPattern matches platform bot accounts and the service's own
	// logins. Bot events never route anywhere, which breaks feedback loops
	// where the orchestrator reacts to its own comments.
	DefaultBotPattern = `(?i)(\[bot\]$|github-actions|dependabot|renovate|greenkeeper|codecov|repogent)`
)

type Config struct {
	MentionToken    string
	SkipMarkerToken string
	BotPattern      string
	// Priority orders agents highest first; defaults to domain.AllAgents.
	Priority []domain.AgentID
}

func DefaultConfig() Config {
	return Config{
		MentionToken:    DefaultMentionToken,
		SkipMarkerToken: DefaultSkipMarkerToken,
		BotPattern:      DefaultBotPattern,
		Priority:        domain.AllAgents,
	}
}

// rule pairs an agent with one trigger predicate. Rules are evaluated in
// priority order; the first rule that triggers and is not excluded claims the
// event, and every lower-priority trigger match becomes an exclusion.
type rule struct {
	agent   domain.AgentID
	reason  string
	trigger func(domain.Event) bool
}

type Router struct {
	cfg        Config
	botPattern *regexp.Regexp
	rules      []rule
}

func New(cfg Config) (*Router, error) {
	if cfg.MentionToken == "" {
		cfg.MentionToken = DefaultMentionToken
	}
	if cfg.SkipMarkerToken == "" {
		cfg.SkipMarkerToken = DefaultSkipMarkerToken
	}
	if cfg.BotPattern == "" {
		cfg.BotPattern = DefaultBotPattern
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = domain.AllAgents
	}

	botPattern, err := regexp.Compile(cfg.BotPattern)
	if err != nil {
		return nil, err
	}

	r := &Router{cfg: cfg, botPattern: botPattern}
	for _, agent := range cfg.Priority {
		r.rules = append(r.rules, r.rulesFor(agent)...)
	}
	return r, nil
}

func (r *Router) rulesFor(agent domain.AgentID) []rule {
	mention := strings.ToLower(r.cfg.MentionToken)

	switch agent {
	case domain.AgentCommunityAssistant:
		return []rule{{
			agent:  agent,
			reason: domain.ReasonMention,
			trigger: func(e domain.Event) bool {
				return e.IsComment() && strings.Contains(strings.ToLower(e.Body), mention)
			},
		}}
	case domain.AgentPRReviewer:
		return []rule{{
			agent:   agent,
			reason:  domain.ReasonPROpened,
			trigger: func(e domain.Event) bool { return e.Kind == domain.EventPROpened },
		}}
	case domain.AgentIssueManager:
		return []rule{
			{
				agent:   agent,
				reason:  domain.ReasonIssueOpened,
				trigger: func(e domain.Event) bool { return e.Kind == domain.EventIssueOpened },
			},
			{
				agent:   agent,
				reason:  domain.ReasonCommentDefault,
				trigger: func(e domain.Event) bool { return e.IsComment() },
			},
		}
	case domain.AgentCICD:
		return []rule{{
			agent:   agent,
			reason:  domain.ReasonWorkflowRun,
			trigger: func(e domain.Event) bool { return e.Kind == domain.EventWorkflowRunCompleted },
		}}
	default:
		return nil
	}
}

// Route classifies an event. It never fails: malformed events route to no
// agent with reason malformed_event, and unrecognized ones with
// no_matching_agent.
func (r *Router) Route(event domain.Event) domain.RoutingDecision {
	if !validKind(event.Kind) || event.Actor == "" || event.EntityID <= 0 {
		return domain.RoutingDecision{
			TargetAgents: []domain.AgentID{},
			Reason:       domain.ReasonMalformedEvent,
		}
	}

	skipped := r.skippedAgents(event.Body)

	// Bot actors are suppressed for every agent, before any claiming.
	if r.botPattern.MatchString(event.Actor) {
		decision := domain.RoutingDecision{
			TargetAgents: []domain.AgentID{},
			Reason:       domain.ReasonBotActor,
		}
		for _, rl := range r.rules {
			if rl.trigger(event) {
				decision.ExcludedAgents = append(decision.ExcludedAgents, domain.Exclusion{
					Agent:  rl.agent,
					Reason: domain.ReasonBotActor,
				})
			}
		}
		return decision
	}

	decision := domain.RoutingDecision{TargetAgents: []domain.AgentID{}}
	var claimedReason string

	for _, rl := range r.rules {
		if !rl.trigger(event) {
			continue
		}
		if skipped[rl.agent] {
			decision.ExcludedAgents = append(decision.ExcludedAgents, domain.Exclusion{
				Agent:  rl.agent,
				Reason: domain.ReasonSkipMarker,
			})
			continue
		}
		if len(decision.TargetAgents) > 0 {
			// A higher-priority agent already claimed the event; lower
			// matches are excluded unconditionally.
			decision.ExcludedAgents = append(decision.ExcludedAgents, domain.Exclusion{
				Agent:  rl.agent,
				Reason: exclusionReason(claimedReason),
			})
			continue
		}
		decision.TargetAgents = append(decision.TargetAgents, rl.agent)
		claimedReason = rl.reason
		decision.Reason = rl.reason
	}

	if len(decision.TargetAgents) == 0 && decision.Reason == "" {
		decision.Reason = domain.ReasonNoMatchingAgent
	}
	return decision
}

// skippedAgents parses every skip marker in the body, e.g.
// "[repogent-skip:issue_manager]". Unknown agent names are ignored.
func (r *Router) skippedAgents(body string) map[domain.AgentID]bool {
	skipped := make(map[domain.AgentID]bool)
	lower := strings.ToLower(body)
	marker := strings.ToLower(r.cfg.SkipMarkerToken)

	for i := 0; ; {
		idx := strings.Index(lower[i:], marker)
		if idx < 0 {
			break
		}
		start := i + idx + len(marker)
		end := strings.IndexByte(lower[start:], ']')
		if end < 0 {
			break
		}
		agent := domain.AgentID(strings.TrimSpace(lower[start : start+end]))
		if domain.Known(agent) {
			skipped[agent] = true
		}
		i = start + end + 1
	}
	return skipped
}

func exclusionReason(claimedReason string) string {
	if claimedReason == domain.ReasonMention {
		return domain.ReasonMentionPriority
	}
	return "claimed_by_higher_priority"
}

func validKind(kind domain.EventKind) bool {
	switch kind {
	case domain.EventIssueOpened, domain.EventIssueComment, domain.EventPROpened,
		domain.EventPRComment, domain.EventWorkflowRunCompleted:
		return true
	}
	return false
}
