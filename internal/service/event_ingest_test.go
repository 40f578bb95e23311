package service_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/common/id"
	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/router"
	"repogent.app/orchestrator/internal/service"
	"repogent.app/orchestrator/internal/store"
)

var _ = Describe("EventIngestService", func() {
	var (
		svc           service.EventIngestService
		mockEventLogs *mockEventLogStore
		mockDecisions *mockDecisionLogStore
		q             *mockQueue
		ctx           context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockEventLogs = &mockEventLogStore{}
		mockDecisions = &mockDecisionLogStore{}
		q = &mockQueue{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		rt, err := router.New(router.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		txRunner := &mockTxRunner{
			withTxFn: func(ctx context.Context, fn func(stores service.StoreProvider) error) error {
				return fn(&mockStoreProvider{
					eventLogs:   mockEventLogs,
					contexts:    &mockContextStore{},
					decisionLog: mockDecisions,
				})
			},
		}

		svc = service.NewEventIngestService(txRunner, rt, q, nil)
	})

	Describe("Ingest", func() {
		Context("with a mention comment from a human", func() {
			It("routes to the community assistant and fans out one message", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "issue_comment",
					Actor:      "alice",
					EntityType: "issue",
					EntityID:   42,
					Body:       "hey @repogent can you summarize this thread?",
					Timestamp:  time.Now().UTC(),
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Duplicated).To(BeFalse())
				Expect(result.Decision).NotTo(BeNil())
				Expect(result.Decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCommunityAssistant}))

				Expect(q.enqueued).To(HaveLen(1))
				Expect(q.enqueued[0].ToAgent).To(Equal(domain.AgentCommunityAssistant))
				Expect(q.enqueued[0].Type).To(Equal(domain.MessageEventNotification))
				Expect(q.enqueued[0].EntityRef).To(Equal("issue/42"))

				Expect(mockDecisions.capturedDecision).NotTo(BeNil())
				Expect(mockEventLogs.capturedLog.EntityRef).To(Equal("issue/42"))
				Expect(mockEventLogs.marked).To(ContainElement(mockEventLogs.capturedLog.ID))
			})
		})

		Context("with a duplicate delivery of a fully processed event", func() {
			BeforeEach(func() {
				mockEventLogs.createOrGetFn = func(ctx context.Context, log *store.EventLog) (*store.EventLog, bool, error) {
					prior := *log
					prior.ID = 7777
					prior.FannedOut = true
					return &prior, false, nil
				}
			})

			It("returns the prior event without routing or enqueueing", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "issue_opened",
					Actor:      "alice",
					EntityType: "issue",
					EntityID:   5,
					DeliveryID: "guid-123",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Duplicated).To(BeTrue())
				Expect(result.Decision).To(BeNil())
				Expect(result.EventLog.ID).To(Equal(int64(7777)))
				Expect(q.enqueued).To(BeEmpty())
				Expect(mockDecisions.capturedDecision).To(BeNil())
			})
		})

		Context("with a duplicate delivery of an event whose fan-out was cut short", func() {
			BeforeEach(func() {
				mockEventLogs.createOrGetFn = func(ctx context.Context, log *store.EventLog) (*store.EventLog, bool, error) {
					prior := *log
					prior.ID = 8888
					return &prior, false, nil
				}
			})

			It("re-runs the fan-out and marks the event complete", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "issue_comment",
					Actor:      "alice",
					EntityType: "issue",
					EntityID:   42,
					Body:       "hey @repogent can you summarize this thread?",
					DeliveryID: "guid-456",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Duplicated).To(BeTrue())
				Expect(result.EventLog.ID).To(Equal(int64(8888)))
				Expect(result.Decision).NotTo(BeNil())
				Expect(result.Decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCommunityAssistant}))

				Expect(q.enqueued).To(HaveLen(1))
				Expect(q.enqueued[0].ToAgent).To(Equal(domain.AgentCommunityAssistant))
				Expect(mockEventLogs.marked).To(Equal([]int64{8888}))

				// The decision was already logged on the first delivery.
				Expect(mockDecisions.capturedDecision).To(BeNil())
			})
		})

		Context("with a failed workflow run", func() {
			It("fans out an analyze_build_failure message to the CI/CD agent", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "workflow_run_completed",
					Actor:      "alice",
					EntityType: "pr",
					EntityID:   9,
					Payload:    json.RawMessage(`{"conclusion":"failure"}`),
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCICD}))
				Expect(q.enqueued).To(HaveLen(1))
				Expect(q.enqueued[0].Type).To(Equal(domain.MessageAnalyzeBuildFailure))
			})
		})

		Context("with a bot actor", func() {
			It("records the decision but enqueues nothing", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "issue_comment",
					Actor:      "dependabot[bot]",
					EntityType: "issue",
					EntityID:   3,
					Body:       "Bumps lodash from 4.17.20 to 4.17.21.",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Decision.TargetAgents).To(BeEmpty())
				Expect(q.enqueued).To(BeEmpty())
				Expect(mockDecisions.capturedDecision).NotTo(BeNil())
				Expect(mockDecisions.capturedDecision.ExcludedAgents).NotTo(BeEmpty())
			})
		})

		Context("with a hostile entity type", func() {
			It("rejects the identifier before touching storage", func() {
				_, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "issue_opened",
					Actor:      "alice",
					EntityType: "../../etc",
					EntityID:   1,
				})

				Expect(err).To(HaveOccurred())
				Expect(mockEventLogs.capturedLog).To(BeNil())
			})
		})

		Context("dedupe keys", func() {
			It("uses the delivery GUID when present", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "pr_opened",
					Actor:      "bob",
					EntityType: "pr",
					EntityID:   12,
					DeliveryID: "abc-def",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.DedupeKey).To(Equal("pr_opened:abc-def"))
			})

			It("hashes the content when no GUID is given", func() {
				result, err := svc.Ingest(ctx, service.EventIngestParams{
					Kind:       "pr_opened",
					Actor:      "bob",
					EntityType: "pr",
					EntityID:   12,
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.DedupeKey).To(HavePrefix("pr_opened:"))
				Expect(len(result.DedupeKey)).To(BeNumerically(">", len("pr_opened:")+32))
			})
		})
	})
})
