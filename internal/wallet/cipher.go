// internal/wallet/cipher.go
package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

var ErrDecrypt = errors.New("failed to decrypt private key")

// noExpiry disables the token TTL check: stored keys never expire.
const noExpiry = time.Duration(-1)

// Cipher шифрует приватные ключи Fernet-токенами.
// The first key encrypts; every key is tried on decrypt so secrets can be rotated.
type Cipher struct {
	keys []*fernet.Key
}

func NewCipher(secrets ...string) (*Cipher, error) {
	if len(secrets) == 0 {
		return nil, errors.New("no wallet secret configured")
	}
	keys, err := fernet.DecodeKeys(secrets...)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet secret: %w", err)
	}
	return &Cipher{keys: keys}, nil
}

func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(plain, c.keys[0])
	if err != nil {
		return nil, fmt.Errorf("encrypt private key: %w", err)
	}
	return tok, nil
}

func (c *Cipher) Decrypt(token []byte) ([]byte, error) {
	plain := fernet.VerifyAndDecrypt(token, noExpiry, c.keys)
	if plain == nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
