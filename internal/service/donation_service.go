package service

import (
	"context"

	"starplanner/internal/model"
	"starplanner/internal/repository"
)

// DonationService records Stars payments. Invoice creation and webhook
// signature checks live in the Telegram layer; this is a thin pass-through.
type DonationService struct {
	repo *repository.DonationRepository
}

func NewDonationService(repo *repository.DonationRepository) *DonationService {
	return &DonationService{repo: repo}
}

// RecordPayment stores a successful payment, absorbing duplicate webhooks.
func (s *DonationService) RecordPayment(ctx context.Context, user *model.User, amount int, chargeID string) error {
	return s.repo.Insert(ctx, &model.Donation{
		UserID:                  user.ID,
		Amount:                  amount,
		TelegramPaymentChargeID: chargeID,
	})
}

// Total returns the user's lifetime donated Stars.
func (s *DonationService) Total(ctx context.Context, user *model.User) (int64, error) {
	return s.repo.TotalByUser(ctx, user.ID)
}
