package app

import (
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/repos"
)

type Repos struct {
	Balance    repos.BalanceRepo
	Order      repos.OrderRepo
	Escrow     repos.EscrowRepo
	TopUp      repos.TopUpRepo
	Withdrawal repos.WithdrawalRepo
	Dispute    repos.DisputeRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Balance:    repos.NewBalanceRepo(db, log),
		Order:      repos.NewOrderRepo(db, log),
		Escrow:     repos.NewEscrowRepo(db, log),
		TopUp:      repos.NewTopUpRepo(db, log),
		Withdrawal: repos.NewWithdrawalRepo(db, log),
		Dispute:    repos.NewDisputeRepo(db, log),
	}
}
