// internal/wallet/custody.go
package wallet

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Custody выдаёт подписантов по user id: ключ читается из Store и расшифровывается Cipher.
type Custody struct {
	store  Store
	cipher *Cipher
	logger *zap.Logger
}

func NewCustody(store Store, cipher *Cipher, logger *zap.Logger) *Custody {
	return &Custody{
		store:  store,
		cipher: cipher,
		logger: logger.Named("wallet-custody"),
	}
}

// LoadWallet returns ErrWalletNotFound when the user never created or imported a wallet.
func (c *Custody) LoadWallet(ctx context.Context, userID int64) (*Wallet, error) {
	enc, err := c.store.GetEncryptedKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw, err := c.cipher.Decrypt(enc)
	if err != nil {
		c.logger.Error("stored key cannot be decrypted", zap.Int64("user_id", userID))
		return nil, err
	}
	return FromBytes(raw)
}

// Import сохраняет base58 приватный ключ пользователя, заменяя предыдущий.
func (c *Custody) Import(ctx context.Context, userID int64, privateKeyBase58 string) (*Wallet, error) {
	w, err := NewWallet(privateKeyBase58)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, userID, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Create генерирует и сохраняет новый кошелёк.
func (c *Custody) Create(ctx context.Context, userID int64) (*Wallet, error) {
	w, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, userID, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (c *Custody) save(ctx context.Context, userID int64, w *Wallet) error {
	enc, err := c.cipher.Encrypt(w.PrivateKey)
	if err != nil {
		return err
	}
	if err := c.store.SaveEncryptedKey(ctx, userID, enc); err != nil {
		return fmt.Errorf("store wallet for user %d: %w", userID, err)
	}
	c.logger.Info("wallet saved",
		zap.Int64("user_id", userID),
		zap.String("address", w.PublicKey.String()))
	return nil
}
