package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers are notified when a bay they follow becomes available.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Bays []*Bay `gorm:"many2many:subscription_bay_mapping;"`
}
