package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"starplanner/internal/model"
)

// DonationRepository records completed Stars payments.
type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Insert stores a donation. A repeated webhook for the same charge id is
// absorbed silently.
func (r *DonationRepository) Insert(ctx context.Context, d *model.Donation) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

// TotalByUser sums a user's Stars donations.
func (r *DonationRepository) TotalByUser(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Donation{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
