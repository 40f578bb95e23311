package service

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"repogent.app/orchestrator/core/db"
	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/store"
)

// The store interfaces cover only what the services call, so tests can swap
// in function-field mocks without a database.

type EventLogStore interface {
	CreateOrGet(ctx context.Context, log *store.EventLog) (*store.EventLog, bool, error)
	GetByID(ctx context.Context, id int64) (*store.EventLog, error)
	ListByEntity(ctx context.Context, entityRef string, limit int32) ([]store.EventLog, error)
	MarkFannedOut(ctx context.Context, id int64) error
}

type ContextStore interface {
	Get(ctx context.Context, entityRef string) (*domain.ContextEntry, error)
	Merge(ctx context.Context, entityRef string, patch map[string]json.RawMessage, updatedBy string) (*domain.ContextEntry, error)
}

type DecisionLogStore interface {
	Append(ctx context.Context, eventRef, entityRef string, decision domain.RoutingDecision) (*domain.DecisionLogEntry, error)
	Query(ctx context.Context, entityRef string, afterSequence int64, limit int32) ([]domain.DecisionLogEntry, error)
}

// StoreProvider exposes only the stores needed by a transactional operation.
type StoreProvider interface {
	EventLogs() EventLogStore
	Contexts() ContextStore
	DecisionLog() DecisionLogStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db             *db.DB
	contextMaxSize int
}

// NewTxRunner builds a TxRunner backed by the core DB. contextMaxSize bounds
// merged context entries; zero keeps the store default.
func NewTxRunner(db *db.DB, contextMaxSize int) TxRunner {
	return &dbTxRunner{db: db, contextMaxSize: contextMaxSize}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		stores := store.NewStores(tx)
		if r.contextMaxSize > 0 {
			stores.Contexts().WithMaxSize(r.contextMaxSize)
		}
		return fn(storeProvider{stores: stores})
	})
}

type storeProvider struct {
	stores *store.Stores
}

func (p storeProvider) EventLogs() EventLogStore      { return p.stores.EventLogs() }
func (p storeProvider) Contexts() ContextStore        { return p.stores.Contexts() }
func (p storeProvider) DecisionLog() DecisionLogStore { return p.stores.DecisionLog() }
