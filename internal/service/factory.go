package service

import (
	"log/slog"

	"repogent.app/orchestrator/internal/router"
)

type Services struct {
	txRunner TxRunner
	router   *router.Router
	queue    InboxQueue
	logger   *slog.Logger
}

func NewServices(txRunner TxRunner, rt *router.Router, queue InboxQueue, logger *slog.Logger) *Services {
	return &Services{
		txRunner: txRunner,
		router:   rt,
		queue:    queue,
		logger:   logger,
	}
}

func (s *Services) EventIngest() EventIngestService {
	return NewEventIngestService(s.txRunner, s.router, s.queue, s.logger)
}

func (s *Services) Inbox() InboxService {
	return NewInboxService(s.queue, s.logger)
}

func (s *Services) EntityContexts() EntityContextService {
	return NewEntityContextService(s.txRunner, s.logger)
}

func (s *Services) DecisionQueries() DecisionQueryService {
	return NewDecisionQueryService(s.txRunner)
}
