// internal/storage/models/swap.go
package models

// Swap – история исполненных и неудачных свопов.
type Swap struct {
	BaseModel
	UserID        int64   `gorm:"index;not null"`
	Source        string  `gorm:"index;not null;type:varchar(32)"`
	Signature     string  `gorm:"index;type:varchar(88)"`
	WalletAddress string  `gorm:"type:varchar(44)"`
	InputMint     string  `gorm:"not null;type:varchar(44)"`
	OutputMint    string  `gorm:"not null;type:varchar(44)"`
	Amount        float64 `gorm:"not null"`
	AmountIn      uint64
	FeeAmount     uint64
	Status        string  `gorm:"not null;type:varchar(20)"`
	ErrorMessage  string  `gorm:"type:text"`
	ExecutionTime float64 `gorm:"type:decimal(10,3)"`
}

const (
	SwapStatusConfirmed = "confirmed"
	SwapStatusFailed    = "failed"
)
