package coordinator

import (
	"context"

	"concord/internal/guardrail"
	"concord/internal/proposal"
	id "concord/pkg/domain"
)

// PeerAttestor decides how a requested peer votes when its domain attests
// automatically.
type PeerAttestor interface {
	Attest(ctx context.Context, signer id.DomainID, p *proposal.Proposal) (proposal.Vote, string, error)
}

// OracleAttestor approves unless the proposal carries a veto or the
// compliance oracle objects to the check "attestation:<signer>".
type OracleAttestor struct {
	oracle guardrail.ComplianceOracle
}

func NewOracleAttestor(oracle guardrail.ComplianceOracle) *OracleAttestor {
	return &OracleAttestor{oracle: oracle}
}

func (a *OracleAttestor) Attest(ctx context.Context, signer id.DomainID, p *proposal.Proposal) (proposal.Vote, string, error) {
	if veto, ok := p.Veto(); ok {
		return proposal.VoteReject, "vetoed by " + veto.Name, nil
	}
	verdict, err := a.oracle.Check(ctx, AttestationCheck(signer), p)
	if err != nil {
		return "", "", err
	}
	if !verdict.Compliant {
		return proposal.VoteReject, verdict.Reason, nil
	}
	return proposal.VoteApprove, "auto", nil
}

// AttestationCheck names the oracle check a peer's automatic vote consults.
func AttestationCheck(signer id.DomainID) string {
	return "attestation:" + string(signer)
}
