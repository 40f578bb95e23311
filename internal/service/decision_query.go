package service

import (
	"context"

	"repogent.app/orchestrator/internal/domain"
)

// DecisionQueryService pages through an entity's routing history in ascending
// sequence order, restartable from any cursor. Agents use it to spot repeated
// patterns (and to check whether a redelivered message was already handled).
type DecisionQueryService interface {
	Query(ctx context.Context, entityType string, entityID int64, afterSequence int64, limit int32) ([]domain.DecisionLogEntry, error)
}

type decisionQueryService struct {
	txRunner TxRunner
}

func NewDecisionQueryService(txRunner TxRunner) DecisionQueryService {
	return &decisionQueryService{txRunner: txRunner}
}

func (s *decisionQueryService) Query(ctx context.Context, entityType string, entityID int64, afterSequence int64, limit int32) ([]domain.DecisionLogEntry, error) {
	entityRef, err := entityRefFor(entityType, entityID)
	if err != nil {
		return nil, err
	}

	var entries []domain.DecisionLogEntry
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		entries, err = sp.DecisionLog().Query(ctx, entityRef, afterSequence, limit)
		return err
	}); err != nil {
		return nil, err
	}
	return entries, nil
}
