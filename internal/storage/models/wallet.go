// internal/storage/models/wallet.go
package models

// WalletRecord хранит зашифрованный (Fernet) приватный ключ пользователя.
type WalletRecord struct {
	UserKeyed
	EncryptedPrivkey []byte `gorm:"not null"`
}

func (WalletRecord) TableName() string { return "swap_users" }
