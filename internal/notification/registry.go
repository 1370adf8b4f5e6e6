package notification

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brewpulse/internal/model"
)

// ErrSubscriptionNotFound is returned by Get for an unknown endpoint.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Registry stores the push subscriptions of admin devices.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a registry on db.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Put creates the subscription or replaces its keys.
func (r *Registry) Put(ctx context.Context, sub model.PushSubscription) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// Get returns the subscription for endpoint.
func (r *Registry) Get(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := r.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, ErrSubscriptionNotFound
	}
	if err != nil {
		return sub, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

// Delete removes the subscription. Unknown endpoints are ignored.
func (r *Registry) Delete(ctx context.Context, endpoint string) error {
	if err := r.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
