package ledger

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
)

const DefaultBonusInterval = 24 * time.Hour

var ErrTooEarly = errors.New("too early to claim bonus")

// TooEarlyError carries how long the caller has to wait before the next claim.
type TooEarlyError struct {
	RetryAfter time.Duration
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrTooEarly, e.RetryAfter.Round(time.Second))
}

func (e *TooEarlyError) Is(target error) bool {
	return target == ErrTooEarly
}

// BonusPolicy decides whether a bonus may be claimed and how large it is.
// Amounts are whole currency units drawn uniformly from [min, max].
type BonusPolicy struct {
	min      int64
	max      int64
	interval time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBonusPolicy(min, max int64, interval time.Duration, src rand.Source) (*BonusPolicy, error) {
	if min <= 0 || max < min {
		return nil, fmt.Errorf("invalid bonus range [%d, %d]", min, max)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid bonus interval %s", interval)
	}
	return &BonusPolicy{
		min:      min,
		max:      max,
		interval: interval,
		rnd:      rand.New(src),
	}, nil
}

// NewSeededSource returns a PCG source; a zero seed is replaced with the current time.
func NewSeededSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed>>1|1)
}

func (p *BonusPolicy) Interval() time.Duration {
	return p.interval
}

func (p *BonusPolicy) Amount() decimal.Decimal {
	p.mu.Lock()
	n := p.min + p.rnd.Int64N(p.max-p.min+1)
	p.mu.Unlock()
	return decimal.NewFromInt(n)
}

// Check returns nil when a bonus may be issued at now given the latest bonus
// entry of the account (nil if there is none).
func (p *BonusPolicy) Check(last *domain.LedgerEntry, now time.Time) error {
	if last == nil {
		return nil
	}
	elapsed := now.Sub(last.CreatedAt)
	if elapsed < p.interval {
		return &TooEarlyError{RetryAfter: p.interval - elapsed}
	}
	return nil
}
