package handler_test

import (
	"context"

	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/service"
	"repogent.app/orchestrator/internal/store"
)

type mockInboxService struct {
	sendFn  func(ctx context.Context, params service.SendParams) (int64, error)
	fetchFn func(ctx context.Context, agent string, limit int64) ([]queue.Delivery, error)
	ackFn   func(ctx context.Context, agent string, receiptID string) error
}

func (m *mockInboxService) Send(ctx context.Context, params service.SendParams) (int64, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, params)
	}
	return 1, nil
}

func (m *mockInboxService) Fetch(ctx context.Context, agent string, limit int64) ([]queue.Delivery, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, agent, limit)
	}
	return []queue.Delivery{}, nil
}

func (m *mockInboxService) Acknowledge(ctx context.Context, agent string, receiptID string) error {
	if m.ackFn != nil {
		return m.ackFn(ctx, agent, receiptID)
	}
	return nil
}

type mockIngestService struct {
	ingestFn func(ctx context.Context, params service.EventIngestParams) (*service.EventIngestResult, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, params service.EventIngestParams) (*service.EventIngestResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, params)
	}
	return &service.EventIngestResult{EventLog: &store.EventLog{ID: 1}}, nil
}
