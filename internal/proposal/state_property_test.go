package proposal_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"concord/internal/proposal"
	"concord/internal/proposal/store"
	"concord/internal/registry"
	id "concord/pkg/domain"
	"concord/pkg/testutil"
)

// op is one randomly generated call against a single proposal.
type op struct {
	Kind   int // 0 attest, 1 guardrails, 2 enact, 3 rollback, 4 expire sweep
	Signer int
	Vote   int
	Veto   bool
	Hours  int
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.IntRange(0, 9),
		gen.IntRange(0, 2),
		gen.IntRange(0, 4).Map(func(i int) bool { return i == 0 }),
		gen.IntRange(0, 30),
	).Map(func(v []any) op {
		return op{Kind: v[0].(int), Signer: v[1].(int), Vote: v[2].(int), Veto: v[3].(bool), Hours: v[4].(int)}
	})
}

var allowed = map[proposal.Status][]proposal.Status{
	proposal.StatusPending:   {proposal.StatusPending, proposal.StatusReviewing, proposal.StatusRejected, proposal.StatusExpired, proposal.StatusEnacted},
	proposal.StatusReviewing: {proposal.StatusReviewing, proposal.StatusRejected, proposal.StatusExpired, proposal.StatusEnacted},
	proposal.StatusEnacted:   {proposal.StatusEnacted},
	proposal.StatusRejected:  {proposal.StatusRejected},
	proposal.StatusExpired:   {proposal.StatusExpired},
}

func permitted(from, to proposal.Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Whatever sequence of calls is made, status only moves forward, changes
// are applied at most once, and an enacted proposal never carries a veto.
func TestProposalLifecycleProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	votes := []proposal.Vote{proposal.VoteApprove, proposal.VoteReject, proposal.VoteAbstain}
	domains := id.AllDomains()

	properties.Property("status moves forward and enactment happens once", prop.ForAll(
		func(ops []op) bool {
			applier := &recordingApplier{}
			svc := proposal.New(store.NewInMemoryStore(), registry.Default(), proposal.WithApplier(applier))
			now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			p, err := svc.Create(testutil.At(now), proposal.CreateRequest{
				Domain:  id.Energy,
				Author:  "prop",
				Changes: []proposal.Change{{Kind: proposal.ChangeNote}},
			})
			if err != nil {
				return false
			}

			prev := p.Status
			for _, o := range ops {
				now = now.Add(time.Duration(o.Hours) * time.Hour)
				ctx := testutil.At(now)
				switch o.Kind {
				case 0:
					_, _ = svc.Attest(ctx, p.ID, domains[o.Signer], votes[o.Vote], "")
				case 1:
					outcome := proposal.OutcomePass
					if o.Veto {
						outcome = proposal.OutcomeVeto
					}
					_, _ = svc.RecordGuardrails(ctx, p.ID, []proposal.GuardrailResult{
						{Name: registry.GuardrailEcology, Outcome: outcome},
						{Name: registry.GuardrailEquity, Outcome: proposal.OutcomePass},
					})
				case 2:
					_, _ = svc.Enact(ctx, p.ID)
				case 3:
					_, _ = svc.Rollback(ctx, p.ID)
				case 4:
					_, _ = svc.Expire(ctx)
				}

				cur, err := svc.Get(context.Background(), p.ID)
				if err != nil {
					return false
				}
				if !permitted(prev, cur.Status) {
					return false
				}
				if cur.Status == proposal.StatusEnacted {
					if _, vetoed := cur.Veto(); vetoed || cur.EnactedAt == nil || !cur.QuorumMet() {
						return false
					}
				}
				prev = cur.Status
			}
			return applier.applied.Load() <= 1
		},
		gen.SliceOfN(25, genOp()),
	))

	properties.TestingRun(t)
}
