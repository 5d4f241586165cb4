package repo

import (
	"testing"

	accountrepo "github.com/GlebRadaev/casino-wallet/internal/repo/account-repo"
	ledgerrepo "github.com/GlebRadaev/casino-wallet/internal/repo/ledger-repo"
	promorepo "github.com/GlebRadaev/casino-wallet/internal/repo/promo-repo"
	"github.com/GlebRadaev/casino-wallet/internal/service/authservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/walletservice"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
)

var (
	_ authservice.Repo            = (*accountrepo.Repository)(nil)
	_ walletservice.AccountRepo   = (*accountrepo.Repository)(nil)
	_ referralservice.AccountRepo = (*accountrepo.Repository)(nil)
	_ walletservice.LedgerRepo    = (*ledgerrepo.Repository)(nil)
	_ referralservice.LedgerRepo  = (*ledgerrepo.Repository)(nil)
	_ walletservice.PromoRepo     = (*promorepo.Repository)(nil)
)

func NewMock(t *testing.T) (*Repositories, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mockDB.Close)

	return New(mockDB), mockDB
}

func TestNew(t *testing.T) {
	repo, mock := NewMock(t)

	assert.NotNil(t, repo.AccountRepo)
	assert.NotNil(t, repo.LedgerRepo)
	assert.NotNil(t, repo.PromoRepo)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unmet expectations: %v", err)
	}
}
