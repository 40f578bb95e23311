// Package store provides the Postgres-backed persistence for the
// orchestration substrate: the event dedupe log, the shared context entries,
// and the append-only decision log.
package store

import (
	"errors"

	"repogent.app/orchestrator/core/db"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrContextTooLarge rejects merges whose resulting entry would exceed
	// the context size budget. Nothing is written; callers must summarize.
	ErrContextTooLarge = errors.New("context entry too large")
)

// Stores bundles the typed stores over one Querier (pool or transaction).
type Stores struct {
	eventLogs   *EventLogStore
	contexts    *ContextStore
	decisionLog *DecisionLogStore
}

func NewStores(q db.Querier) *Stores {
	return &Stores{
		eventLogs:   NewEventLogStore(q),
		contexts:    NewContextStore(q),
		decisionLog: NewDecisionLogStore(q),
	}
}

func (s *Stores) EventLogs() *EventLogStore      { return s.eventLogs }
func (s *Stores) Contexts() *ContextStore        { return s.contexts }
func (s *Stores) DecisionLog() *DecisionLogStore { return s.decisionLog }
