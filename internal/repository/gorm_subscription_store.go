package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ SubscriptionStore = (*GormSubscriptionStore)(nil)

// GormSubscriptionStore keeps subscriptions in a relational database.
type GormSubscriptionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSubscriptionStore migrates the schema and returns the store.
func NewGormSubscriptionStore(db *gorm.DB) (*GormSubscriptionStore, error) {
	if err := db.AutoMigrate(&models.Subscription{}); err != nil {
		return nil, err
	}
	return &GormSubscriptionStore{db: db, now: time.Now}, nil
}

func (s *GormSubscriptionStore) ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at").
		Find(&subs).Error
	return subs, err
}

func (s *GormSubscriptionStore) ListActive(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at").
		Find(&subs).Error
	return subs, err
}

func (s *GormSubscriptionStore) GetByEndpoint(ctx context.Context, endpoint string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *GormSubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	now := s.now()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.IsActive = true
	sub.CreatedAt = now
	sub.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "is_active", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return err
	}

	// On conflict the stored row keeps its original id and creation time.
	stored, err := s.GetByEndpoint(ctx, sub.Endpoint)
	if err != nil {
		return err
	}
	*sub = *stored
	return nil
}

func (s *GormSubscriptionStore) Deactivate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": s.now()}).Error
}

func (s *GormSubscriptionStore) DeactivateByEndpoint(ctx context.Context, endpoint string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("endpoint = ?", endpoint).
		Updates(map[string]interface{}{"is_active": false, "updated_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *GormSubscriptionStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error
}

func (s *GormSubscriptionStore) PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.Subscription{})
	return res.RowsAffected, res.Error
}

func (s *GormSubscriptionStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormSubscriptionStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
