package service_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/service"
)

var _ = Describe("EntityContextService", func() {
	var (
		svc          service.EntityContextService
		mockContexts *mockContextStore
		ctx          context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockContexts = &mockContextStore{}

		txRunner := &mockTxRunner{
			withTxFn: func(ctx context.Context, fn func(stores service.StoreProvider) error) error {
				return fn(&mockStoreProvider{
					eventLogs:   &mockEventLogStore{},
					contexts:    mockContexts,
					decisionLog: &mockDecisionLogStore{},
				})
			},
		}

		svc = service.NewEntityContextService(txRunner, nil)
	})

	Describe("Get", func() {
		It("builds the entity ref from type and id", func() {
			var gotRef string
			mockContexts.getFn = func(ctx context.Context, entityRef string) (*domain.ContextEntry, error) {
				gotRef = entityRef
				return &domain.ContextEntry{EntityRef: entityRef, Data: map[string]json.RawMessage{}}, nil
			}

			entry, err := svc.Get(ctx, "pr", 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(gotRef).To(Equal("pr/42"))
			Expect(entry.EntityRef).To(Equal("pr/42"))
		})

		It("rejects a traversal entity type", func() {
			_, err := svc.Get(ctx, "../secrets", 1)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a non-positive entity id", func() {
			_, err := svc.Get(ctx, "issue", 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Merge", func() {
		It("passes the patch through and reports the new version", func() {
			mockContexts.mergeFn = func(ctx context.Context, entityRef string, patch map[string]json.RawMessage, updatedBy string) (*domain.ContextEntry, error) {
				return &domain.ContextEntry{EntityRef: entityRef, Data: patch, Version: 3, UpdatedBy: updatedBy}, nil
			}

			entry, err := svc.Merge(ctx, service.ContextPatchParams{
				EntityType: "issue",
				EntityID:   7,
				Patch:      map[string]json.RawMessage{"triage_label": json.RawMessage(`"bug"`)},
				UpdatedBy:  "issue_manager",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Version).To(Equal(int64(3)))
			Expect(entry.UpdatedBy).To(Equal("issue_manager"))
		})

		It("rejects a patch key containing traversal sequences", func() {
			_, err := svc.Merge(ctx, service.ContextPatchParams{
				EntityType: "issue",
				EntityID:   7,
				Patch:      map[string]json.RawMessage{"../escape": json.RawMessage(`"x"`)},
				UpdatedBy:  "issue_manager",
			})

			Expect(err).To(HaveOccurred())
		})

		It("rejects a path-valued key that escapes the root", func() {
			_, err := svc.Merge(ctx, service.ContextPatchParams{
				EntityType: "pr",
				EntityID:   9,
				Patch:      map[string]json.RawMessage{"failing_test_path": json.RawMessage(`"../../etc/passwd"`)},
				UpdatedBy:  "cicd_agent",
			})

			Expect(err).To(HaveOccurred())
		})

		It("accepts a clean relative path value", func() {
			_, err := svc.Merge(ctx, service.ContextPatchParams{
				EntityType: "pr",
				EntityID:   9,
				Patch:      map[string]json.RawMessage{"failing_test_path": json.RawMessage(`"tests/unit/login.test.ts"`)},
				UpdatedBy:  "cicd_agent",
			})

			Expect(err).NotTo(HaveOccurred())
		})
	})
})
