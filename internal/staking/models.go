package staking

import (
	"time"

	id "concord/pkg/domain"
)

// Position is a wallet's stake in one domain.
//
// Invariants:
//   - Staked >= 0
//   - Cumulative and Influence never decrease
type Position struct {
	Wallet     id.WalletID `json:"wallet"`
	Domain     id.DomainID `json:"domain"`
	Staked     float64     `json:"staked"`
	Cumulative float64     `json:"cumulative"`
	Influence  float64     `json:"influence"`
	LockUntil  time.Time   `json:"lock_until"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// IsLocked reports whether the position cannot be unstaked at now.
func (p *Position) IsLocked(now time.Time) bool {
	return now.Before(p.LockUntil)
}

// Ticket is a wallet's balance of access tickets for one domain. Remaining
// is issued-and-unconsumed and never goes negative.
type Ticket struct {
	Wallet    id.WalletID `json:"wallet"`
	Domain    id.DomainID `json:"domain"`
	Issued    float64     `json:"issued"`
	Remaining float64     `json:"remaining"`
	UnlockAt  time.Time   `json:"unlock_at"`
}

// StakeRequest stakes Amount for LockDays days.
type StakeRequest struct {
	Wallet   id.WalletID
	Domain   id.DomainID
	Amount   float64
	LockDays int
}

// TicketRequest issues Amount tickets. A zero UnlockAt makes them usable at
// once.
type TicketRequest struct {
	Wallet   id.WalletID
	Domain   id.DomainID
	Amount   float64
	UnlockAt time.Time
}

// PoolTotal aggregates stake for one domain.
type PoolTotal struct {
	Domain    id.DomainID `json:"domain"`
	Staked    float64     `json:"staked"`
	Influence float64     `json:"influence"`
	Wallets   int         `json:"wallets"`
}
