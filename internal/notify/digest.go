package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultDigestSchedule = "0 9 * * *"

type PendingLister interface {
	ListPendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error)
}

type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// Digest reports the pending withdrawal queue to operators.
type Digest struct {
	lister  PendingLister
	sender  TextSender
	timeout time.Duration
}

func NewDigest(lister PendingLister, sender TextSender) *Digest {
	return &Digest{lister: lister, sender: sender, timeout: time.Minute}
}

// Run is the cron entry point.
func (d *Digest) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.Send(ctx); err != nil {
		zap.L().Error("Failed to send pending withdrawal digest", zap.Error(err))
	}
}

func (d *Digest) Send(ctx context.Context) error {
	entries, err := d.lister.ListPendingWithdrawals(ctx)
	if err != nil {
		return fmt.Errorf("list pending withdrawals: %w", err)
	}
	if err := d.sender.SendText(ctx, formatDigest(entries)); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	zap.L().Info("Pending withdrawal digest sent", zap.Int("pending", len(entries)))
	return nil
}

func formatDigest(entries []domain.LedgerEntry) string {
	if len(entries) == 0 {
		return "Pending withdrawals: none"
	}
	total := decimal.Zero
	oldest := entries[0].CreatedAt
	for _, e := range entries {
		total = total.Add(e.Amount)
		if e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
	}
	return fmt.Sprintf("Pending withdrawals: %d\ntotal: %s\noldest: %s",
		len(entries), total.StringFixed(2), oldest.UTC().Format(time.RFC3339))
}

type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(schedule string, digest *Digest) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultDigestSchedule
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(zap.L())))))
	if _, err := c.AddFunc(schedule, digest.Run); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	zap.L().Info("Digest scheduler started")
}

// Stop waits for a running digest to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
