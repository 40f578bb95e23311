package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/http/handler"
	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/service"
)

var _ = Describe("InboxHandler", func() {
	var (
		router *gin.Engine
		svc    *mockInboxService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockInboxService{}
		h := handler.NewInboxHandler(svc)
		router.GET("/agents/:agent/messages", h.Fetch)
		router.POST("/agents/:agent/messages", h.Send)
		router.POST("/agents/:agent/messages/:id/ack", h.Acknowledge)
	})

	Describe("Send", func() {
		It("returns 202 with the message id", func() {
			svc.sendFn = func(_ context.Context, params service.SendParams) (int64, error) {
				Expect(params.ToAgent).To(Equal("pr_reviewer"))
				return 42, nil
			}

			body, _ := json.Marshal(map[string]any{
				"from_agent": "cicd_agent",
				"type":       "build_failure",
				"payload":    map[string]string{"failure_type": "test_failure"},
			})
			req := httptest.NewRequest(http.MethodPost, "/agents/pr_reviewer/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["message_id"]).To(BeNumerically("==", 42))
		})

		It("returns 413 when the payload exceeds the size cap", func() {
			svc.sendFn = func(_ context.Context, _ service.SendParams) (int64, error) {
				return 0, queue.ErrPayloadTooLarge
			}

			body, _ := json.Marshal(map[string]any{
				"from_agent": "cicd_agent",
				"type":       "build_failure",
			})
			req := httptest.NewRequest(http.MethodPost, "/agents/pr_reviewer/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
		})

		It("returns 400 for an unknown target agent", func() {
			svc.sendFn = func(_ context.Context, _ service.SendParams) (int64, error) {
				return 0, service.ErrUnknownAgent
			}

			body, _ := json.Marshal(map[string]any{
				"from_agent": "cicd_agent",
				"type":       "build_failure",
			})
			req := httptest.NewRequest(http.MethodPost, "/agents/intruder/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Fetch", func() {
		It("returns 200 with an empty list for an idle inbox", func() {
			req := httptest.NewRequest(http.MethodGet, "/agents/issue_manager/messages", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Messages []queue.Delivery `json:"messages"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Messages).To(BeEmpty())
		})

		It("passes the limit through", func() {
			svc.fetchFn = func(_ context.Context, agent string, limit int64) ([]queue.Delivery, error) {
				Expect(limit).To(Equal(int64(25)))
				return []queue.Delivery{{ReceiptID: "1-0", Message: domain.Message{ID: 9}}}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/agents/issue_manager/messages?limit=25", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("rejects a non-numeric limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/agents/issue_manager/messages?limit=all", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Acknowledge", func() {
		It("acks by receipt id from the path", func() {
			var got string
			svc.ackFn = func(_ context.Context, agent string, receiptID string) error {
				got = receiptID
				return nil
			}

			req := httptest.NewRequest(http.MethodPost, "/agents/pr_reviewer/messages/1692000000000-0/ack", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(Equal("1692000000000-0"))
		})
	})
})
