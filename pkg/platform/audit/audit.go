// Package audit is the shared vocabulary for recording state transitions.
//
// Services describe what happened as an Entry; LogAudit writes it to the
// structured log and hands it to a Recorder (the event log) so the same fact
// is visible to operators and to external consumers.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	id "concord/pkg/domain"
	"concord/pkg/requestcontext"
)

// EventType names a recorded transition.
type EventType string

const (
	// Proposal lifecycle
	EventProposalCreated      EventType = "proposal_created"
	EventProposalReviewing    EventType = "proposal_reviewing"
	EventAttestationRequested EventType = "attestation_requested"
	EventAttestationRecorded  EventType = "attestation_recorded"
	EventAttestationRefused   EventType = "attestation_refused"
	EventSignerRequestRefused EventType = "signer_request_refused"
	EventGuardrailEvaluated   EventType = "guardrail_evaluated"
	EventGuardrailVetoed      EventType = "guardrail_vetoed"
	EventGuardrailRefused     EventType = "guardrail_refused"
	EventProposalEnacted      EventType = "proposal_enacted"
	EventEnactRefused         EventType = "enact_refused"
	EventProposalRejected     EventType = "proposal_rejected"
	EventProposalRolledBack   EventType = "proposal_rolled_back"
	EventRollbackRefused      EventType = "rollback_refused"
	EventRollbackFailed       EventType = "rollback_failed"
	EventProposalExpired      EventType = "proposal_expired"
	EventProposalInvalid      EventType = "proposal_invalid"

	// Change application
	EventNodeCreated   EventType = "node_created"
	EventPolicyAmended EventType = "policy_amended"

	// Faucets
	EventFaucetOpened    EventType = "faucet_opened"
	EventFaucetRefused   EventType = "faucet_refused"
	EventFaucetOpRefused EventType = "faucet_operation_refused"
	EventFaucetScaled    EventType = "faucet_scaled"
	EventFaucetPaused    EventType = "faucet_paused"
	EventFaucetResumed   EventType = "faucet_resumed"
	EventFaucetClosed    EventType = "faucet_closed"
	EventFaucetExpired   EventType = "faucet_expired"
	EventFaucetDrawn     EventType = "faucet_drawn"
	EventScarcityFlagged EventType = "artificial_scarcity_detected"

	// Resources
	EventStockDeposited EventType = "stock_deposited"

	// Staking
	EventStaked              EventType = "staked"
	EventUnstaked            EventType = "unstaked"
	EventUnstakeRefused      EventType = "unstake_refused"
	EventTicketIssued        EventType = "ticket_issued"
	EventTicketConsumed      EventType = "ticket_consumed"
	EventTicketRefused       EventType = "ticket_refused"
	EventGuardrailEscalation EventType = "guardrail_escalation"
)

// Entry is a transition ready to be appended to the event log.
type Entry struct {
	Domain  id.DomainID
	Type    EventType
	Message string
	Data    map[string]any
}

// Recorder appends entries to the event log.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// LogAudit logs a transition with audit attributes and records it. attrList
// is a flat key/value list; it becomes the entry's data payload. Recording
// failures are logged and never propagated: the state change already happened.
func LogAudit(ctx context.Context, logger *slog.Logger, recorder Recorder, domain id.DomainID, event EventType, message string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)

	if logger != nil {
		args := append([]any{}, attrList...)
		if requestID != "" {
			args = append(args, "request_id", requestID)
		}
		args = append(args, "domain", string(domain), "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, message, args...)
	}

	if recorder == nil {
		return
	}
	entry := Entry{
		Domain:  domain,
		Type:    event,
		Message: message,
		Data:    toData(attrList),
	}
	if err := recorder.Record(ctx, entry); err != nil && logger != nil {
		logger.ErrorContext(ctx, "failed to record event",
			"event", string(event),
			"reason", entry.Data["reason"],
			"error", err,
		)
	}
}

func toData(attrList []any) map[string]any {
	if len(attrList) < 2 {
		return nil
	}
	data := make(map[string]any, len(attrList)/2)
	for i := 0; i+1 < len(attrList); i += 2 {
		key, ok := attrList[i].(string)
		if !ok {
			continue
		}
		switch v := attrList[i+1].(type) {
		case fmt.Stringer:
			data[key] = v.String()
		case error:
			data[key] = v.Error()
		default:
			data[key] = v
		}
	}
	return data
}
