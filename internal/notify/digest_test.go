package notify

import (
	"context"
	"testing"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestDigest_Send(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		entries     []domain.LedgerEntry
		listErr     error
		expectedMsg string
		wantErr     bool
	}{
		{
			name: "summarises pending queue",
			entries: []domain.LedgerEntry{
				{ID: 2, Amount: decimal.RequireFromString("10.5"), CreatedAt: t0.Add(time.Hour)},
				{ID: 1, Amount: decimal.NewFromInt(20), CreatedAt: t0},
			},
			expectedMsg: "Pending withdrawals: 2\ntotal: 30.50\noldest: 2026-03-01T10:00:00Z",
		},
		{
			name:        "empty queue",
			expectedMsg: "Pending withdrawals: none",
		},
		{
			name:    "lister fails",
			listErr: assert.AnError,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			lister := NewMockPendingLister(ctrl)
			sender := NewMockTextSender(ctrl)
			d := NewDigest(lister, sender)

			lister.EXPECT().ListPendingWithdrawals(gomock.Any()).Return(tt.entries, tt.listErr)
			if !tt.wantErr {
				sender.EXPECT().SendText(gomock.Any(), tt.expectedMsg).Return(nil)
			}

			err := d.Send(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.listErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDigest_RunLogsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := NewMockPendingLister(ctrl)
	sender := NewMockTextSender(ctrl)
	d := NewDigest(lister, sender)

	lister.EXPECT().ListPendingWithdrawals(gomock.Any()).Return(nil, nil)
	sender.EXPECT().SendText(gomock.Any(), gomock.Any()).Return(assert.AnError)

	d.Run()
}

func TestNewScheduler(t *testing.T) {
	d := NewDigest(nil, nil)

	s, err := NewScheduler("", d)
	assert.NoError(t, err)
	s.Start()
	s.Stop()

	_, err = NewScheduler("not a schedule", d)
	assert.Error(t, err)
}
