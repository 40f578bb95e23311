package service_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/service"
)

var _ = Describe("InboxService", func() {
	var (
		svc service.InboxService
		q   *mockQueue
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		q = &mockQueue{}
		svc = service.NewInboxService(q, nil)
	})

	Describe("Send", func() {
		It("enqueues a message to a known agent", func() {
			id, err := svc.Send(ctx, service.SendParams{
				FromAgent: "cicd_agent",
				ToAgent:   "pr_reviewer",
				Type:      domain.MessageBuildFailure,
				EntityRef: "pr/42",
				Payload:   json.RawMessage(`{"failure_type":"test_failure"}`),
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeZero())
			Expect(q.enqueued).To(HaveLen(1))
			Expect(q.enqueued[0].ToAgent).To(Equal(domain.AgentPRReviewer))
			Expect(q.enqueued[0].EntityRef).To(Equal("pr/42"))
		})

		It("rejects an unknown target agent", func() {
			_, err := svc.Send(ctx, service.SendParams{
				FromAgent: "cicd_agent",
				ToAgent:   "nonexistent",
				Type:      domain.MessageBuildFailure,
			})

			Expect(err).To(MatchError(service.ErrUnknownAgent))
			Expect(q.enqueued).To(BeEmpty())
		})

		It("rejects a hostile entity ref", func() {
			_, err := svc.Send(ctx, service.SendParams{
				FromAgent: "cicd_agent",
				ToAgent:   "pr_reviewer",
				Type:      domain.MessageBuildFailure,
				EntityRef: "../pr/42",
			})

			Expect(err).To(HaveOccurred())
			Expect(q.enqueued).To(BeEmpty())
		})

		It("requires from, to, and type", func() {
			_, err := svc.Send(ctx, service.SendParams{ToAgent: "pr_reviewer"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Fetch", func() {
		It("polls the agent partition", func() {
			q.dequeueFn = func(ctx context.Context, agent domain.AgentID, count int64) ([]queue.Delivery, error) {
				Expect(agent).To(Equal(domain.AgentIssueManager))
				Expect(count).To(Equal(int64(10)))
				return []queue.Delivery{{ReceiptID: "1-0", Message: domain.Message{ID: 5}}}, nil
			}

			deliveries, err := svc.Fetch(ctx, "issue_manager", 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(deliveries).To(HaveLen(1))
			Expect(deliveries[0].Message.ID).To(Equal(int64(5)))
		})

		It("rejects an unknown agent", func() {
			_, err := svc.Fetch(ctx, "intruder", 1)
			Expect(err).To(MatchError(service.ErrUnknownAgent))
		})
	})

	Describe("Acknowledge", func() {
		It("acks by receipt id", func() {
			var acked string
			q.ackFn = func(ctx context.Context, agent domain.AgentID, receiptID string) error {
				acked = receiptID
				return nil
			}

			err := svc.Acknowledge(ctx, "pr_reviewer", "1692000000000-0")

			Expect(err).NotTo(HaveOccurred())
			Expect(acked).To(Equal("1692000000000-0"))
		})

		It("requires a receipt id", func() {
			err := svc.Acknowledge(ctx, "pr_reviewer", "")
			Expect(err).To(HaveOccurred())
		})
	})
})
