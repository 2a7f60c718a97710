// internal/storage/models/subscription.go
package models

type ManualSubscription struct {
	UserKeyed
	Mint   string  `gorm:"not null;type:varchar(44)"`
	Amount float64 `gorm:"not null"`
}

func (ManualSubscription) TableName() string { return "snipe_subscriptions" }

type AutoSubscription struct {
	UserKeyed
	Amount float64 `gorm:"not null"`
}

func (AutoSubscription) TableName() string { return "snipe_all_subscribers" }
