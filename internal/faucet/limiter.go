package faucet

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	id "concord/pkg/domain"
	"concord/pkg/requestcontext"
)

// subUnits is the number of limiter tokens per resource unit. Draws are
// fractional, so the bucket is metered in thousandths of a unit.
const subUnits = 1000

// limiterFor returns the draw limiter for f, creating it with a full bucket
// on first use. Callers hold the faucet lock.
func (s *Service) limiterFor(f *Faucet, now time.Time) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[f.ID]
	if !ok {
		l = rate.NewLimiter(limitFor(f.CurrentRate), burstFor(f.CurrentRate))
		// Anchor the bucket at the request clock rather than wall time.
		l.SetBurstAt(now, burstFor(f.CurrentRate))
		s.limiters[f.ID] = l
	}
	return l
}

// reserveDraw takes the allowance for amount units at now. The returned
// reservation can be cancelled to hand the allowance back.
func (s *Service) reserveDraw(f *Faucet, now time.Time, amount float64) (*rate.Reservation, bool) {
	r := s.limiterFor(f, now).ReserveN(now, tokensFor(amount))
	if !r.OK() {
		return nil, false
	}
	if r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return nil, false
	}
	return r, true
}

func (s *Service) retuneLimiter(ctx context.Context, f *Faucet) {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[f.ID]
	if !ok {
		return
	}
	now := requestcontext.Now(ctx)
	l.SetLimitAt(now, limitFor(f.CurrentRate))
	l.SetBurstAt(now, burstFor(f.CurrentRate))
}

func (s *Service) dropLimiter(faucetID id.FaucetID) {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	delete(s.limiters, faucetID)
}

// limitFor converts units per hour into sub-unit tokens per second.
func limitFor(perHour float64) rate.Limit {
	return rate.Limit(perHour * subUnits / 3600)
}

// burstFor allows up to one hour of flow at once.
func burstFor(perHour float64) int {
	return int(math.Ceil(perHour * subUnits))
}

// tokensFor rounds amount up to whole sub-units. Float noise below a
// millionth of a sub-unit is ignored.
func tokensFor(amount float64) int {
	n := int(math.Ceil(amount*subUnits - 1e-6))
	if n < 1 {
		n = 1
	}
	return n
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
