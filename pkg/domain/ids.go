package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "concord/pkg/domain-errors"
)

// Typed identifiers prevent a faucet id from being passed where a proposal id
// is expected. Construct them with the Parse functions at trust boundaries.
type (
	ProposalID uuid.UUID
	FaucetID   uuid.UUID
	TicketID   uuid.UUID
)

func NewProposalID() ProposalID { return ProposalID(uuid.New()) }
func NewFaucetID() FaucetID     { return FaucetID(uuid.New()) }
func NewTicketID() TicketID     { return TicketID(uuid.New()) }

func (id ProposalID) String() string { return uuid.UUID(id).String() }
func (id FaucetID) String() string   { return uuid.UUID(id).String() }
func (id TicketID) String() string   { return uuid.UUID(id).String() }

func (id ProposalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FaucetID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TicketID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id ProposalID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id FaucetID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id TicketID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *ProposalID) UnmarshalText(b []byte) error {
	parsed, err := ParseProposalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *FaucetID) UnmarshalText(b []byte) error {
	parsed, err := ParseFaucetID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseProposalID(s string) (ProposalID, error) {
	u, err := parseUUID(s, "proposal id")
	return ProposalID(u), err
}

func ParseFaucetID(s string) (FaucetID, error) {
	u, err := parseUUID(s, "faucet id")
	return FaucetID(u), err
}

func ParseTicketID(s string) (TicketID, error) {
	u, err := parseUUID(s, "ticket id")
	return TicketID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

// WalletID identifies a staking wallet. Wallets are opaque addresses; the
// engine only requires them to be non-empty and printable.
type WalletID string

func ParseWalletID(s string) (WalletID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "wallet is required")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "wallet must be 128 characters or less")
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return "", dErrors.New(dErrors.CodeInvalidInput, "wallet contains invalid characters")
		}
	}
	return WalletID(s), nil
}

func (w WalletID) String() string { return string(w) }
