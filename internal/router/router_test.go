package router_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/router"
)

func comment(kind domain.EventKind, actor, body string) domain.Event {
	return domain.Event{
		Kind:      kind,
		Actor:     actor,
		EntityID:  42,
		Body:      body,
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("Router", func() {
	var r *router.Router

	BeforeEach(func() {
		var err error
		r, err = router.New(router.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Route", func() {
		Context("comments mentioning the assistant", func() {
			It("routes to the community assistant and excludes the issue manager", func() {
				decision := r.Route(comment(domain.EventIssueComment, "alice", "@repogent how does routing work?"))

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCommunityAssistant}))
				Expect(decision.Reason).To(Equal(domain.ReasonMention))
				Expect(decision.ExcludedAgents).To(ContainElement(domain.Exclusion{
					Agent:  domain.AgentIssueManager,
					Reason: domain.ReasonMentionPriority,
				}))
			})

			It("matches the mention token case-insensitively", func() {
				decision := r.Route(comment(domain.EventPRComment, "bob", "hey @RepoGent, is this intended?"))

				Expect(decision.Targets(domain.AgentCommunityAssistant)).To(BeTrue())
				Expect(decision.Targets(domain.AgentIssueManager)).To(BeFalse())
			})

			It("applies the same priority to PR comments", func() {
				decision := r.Route(comment(domain.EventPRComment, "carol", "@repogent summarize the diff"))

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCommunityAssistant}))
				Expect(decision.ExcludedAgents).To(HaveLen(1))
			})
		})

		Context("plain comments", func() {
			It("routes to the issue manager by default", func() {
				decision := r.Route(comment(domain.EventIssueComment, "alice", "any update on this?"))

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentIssueManager}))
				Expect(decision.Reason).To(Equal(domain.ReasonCommentDefault))
				Expect(decision.ExcludedAgents).To(BeEmpty())
			})
		})

		Context("bot actors", func() {
			It("routes bot-suffixed accounts nowhere", func() {
				decision := r.Route(comment(domain.EventIssueComment, "dependabot[bot]", "@repogent hello"))

				Expect(decision.TargetAgents).To(BeEmpty())
				Expect(decision.Reason).To(Equal(domain.ReasonBotActor))
			})

			It("records which agents would have matched", func() {
				decision := r.Route(comment(domain.EventIssueComment, "github-actions", "@repogent hello"))

				Expect(decision.ExcludedAgents).To(ContainElement(domain.Exclusion{
					Agent:  domain.AgentCommunityAssistant,
					Reason: domain.ReasonBotActor,
				}))
			})

			It("excludes the orchestrator's own login", func() {
				decision := r.Route(comment(domain.EventIssueComment, "repogent", "done"))

				Expect(decision.TargetAgents).To(BeEmpty())
			})
		})

		Context("skip markers", func() {
			It("force-excludes the named agent", func() {
				decision := r.Route(comment(domain.EventIssueComment, "alice",
					"@repogent please stay out [repogent-skip:community_assistant]"))

				Expect(decision.Targets(domain.AgentCommunityAssistant)).To(BeFalse())
				Expect(decision.ExcludedAgents).To(ContainElement(domain.Exclusion{
					Agent:  domain.AgentCommunityAssistant,
					Reason: domain.ReasonSkipMarker,
				}))
				// The next agent in priority order picks the event up.
				Expect(decision.Targets(domain.AgentIssueManager)).To(BeTrue())
			})

			It("ignores markers naming unknown agents", func() {
				decision := r.Route(comment(domain.EventIssueComment, "alice", "fyi [repogent-skip:nonsense]"))

				Expect(decision.Targets(domain.AgentIssueManager)).To(BeTrue())
			})
		})

		Context("non-comment events", func() {
			It("routes opened PRs to the reviewer", func() {
				decision := r.Route(domain.Event{Kind: domain.EventPROpened, Actor: "alice", EntityID: 7, Timestamp: time.Now()})

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentPRReviewer}))
				Expect(decision.Reason).To(Equal(domain.ReasonPROpened))
			})

			It("routes opened issues to the issue manager", func() {
				decision := r.Route(domain.Event{Kind: domain.EventIssueOpened, Actor: "alice", EntityID: 7, Timestamp: time.Now()})

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentIssueManager}))
				Expect(decision.Reason).To(Equal(domain.ReasonIssueOpened))
			})

			It("routes completed workflow runs to the CI/CD agent", func() {
				decision := r.Route(domain.Event{Kind: domain.EventWorkflowRunCompleted, Actor: "alice", EntityID: 7, Timestamp: time.Now()})

				Expect(decision.TargetAgents).To(Equal([]domain.AgentID{domain.AgentCICD}))
				Expect(decision.Reason).To(Equal(domain.ReasonWorkflowRun))
			})
		})

		Context("malformed events", func() {
			It("drops events with an unknown kind", func() {
				decision := r.Route(domain.Event{Kind: "push", Actor: "alice", EntityID: 7})

				Expect(decision.TargetAgents).To(BeEmpty())
				Expect(decision.Reason).To(Equal(domain.ReasonMalformedEvent))
			})

			It("drops events with no actor", func() {
				decision := r.Route(domain.Event{Kind: domain.EventIssueOpened, EntityID: 7})

				Expect(decision.Reason).To(Equal(domain.ReasonMalformedEvent))
			})

			It("drops events with an invalid entity id", func() {
				decision := r.Route(domain.Event{Kind: domain.EventIssueOpened, Actor: "alice", EntityID: 0})

				Expect(decision.Reason).To(Equal(domain.ReasonMalformedEvent))
			})
		})

		Context("mutual exclusion invariant", func() {
			It("never targets an agent that is also excluded", func() {
				events := []domain.Event{
					comment(domain.EventIssueComment, "alice", "@repogent hi"),
					comment(domain.EventPRComment, "bob", "looks good"),
					comment(domain.EventIssueComment, "dependabot[bot]", "bump"),
					{Kind: domain.EventPROpened, Actor: "carol", EntityID: 3, Timestamp: time.Now()},
				}
				for _, e := range events {
					decision := r.Route(e)
					for _, excluded := range decision.ExcludedAgents {
						Expect(decision.Targets(excluded.Agent)).To(BeFalse(),
							"agent %s both targeted and excluded", excluded.Agent)
					}
				}
			})
		})
	})
})
