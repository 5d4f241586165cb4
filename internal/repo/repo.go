package repo

import (
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	accountrepo "github.com/GlebRadaev/casino-wallet/internal/repo/account-repo"
	ledgerrepo "github.com/GlebRadaev/casino-wallet/internal/repo/ledger-repo"
	promorepo "github.com/GlebRadaev/casino-wallet/internal/repo/promo-repo"
)

type Repositories struct {
	AccountRepo *accountrepo.Repository
	LedgerRepo  *ledgerrepo.Repository
	PromoRepo   *promorepo.Repository
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		AccountRepo: accountrepo.New(conn),
		LedgerRepo:  ledgerrepo.New(conn),
		PromoRepo:   promorepo.New(conn),
	}
}
