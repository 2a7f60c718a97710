// internal/storage/models/user.go
package models

// User – тарифный пакет пользователя (free, plus, pro).
type User struct {
	UserKeyed
	Package      string `gorm:"not null;type:varchar(20);default:free"`
	MessagesSent int    `gorm:"not null;default:0"`
}
