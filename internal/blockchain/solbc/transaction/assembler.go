// internal/blockchain/solbc/transaction/assembler.go
package transaction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var ErrEmptyPayload = errors.New("empty transaction payload")

// TableResolver загружает содержимое address lookup tables.
type TableResolver interface {
	GetLookupTables(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

// Assembler turns a routing service payload into a transaction signed by the user.
type Assembler struct {
	tables TableResolver
	logger *zap.Logger
}

func NewAssembler(tables TableResolver, logger *zap.Logger) *Assembler {
	return &Assembler{
		tables: tables,
		logger: logger.Named("tx-assembler"),
	}
}

// Decode десериализует base64 транзакцию (legacy или v0).
func Decode(payload string) (*solana.Transaction, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// Assemble decodes the payload, resolves the lookup tables it references plus
// any extra refs returned alongside it, and re-signs it with the signer's key.
func (a *Assembler) Assemble(ctx context.Context, payload string, refs []solana.PublicKey, signer solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := Decode(payload)
	if err != nil {
		return nil, err
	}

	if err := a.resolveTables(ctx, tx, refs); err != nil {
		return nil, err
	}

	if err := Sign(tx, signer); err != nil {
		return nil, err
	}
	return tx, nil
}

func (a *Assembler) resolveTables(ctx context.Context, tx *solana.Transaction, refs []solana.PublicKey) error {
	seen := make(map[solana.PublicKey]struct{})
	var keys []solana.PublicKey
	add := func(k solana.PublicKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if tx.Message.IsVersioned() {
		for _, k := range tx.Message.GetAddressTableLookups().GetTableIDs() {
			add(k)
		}
	}
	for _, k := range refs {
		add(k)
	}
	if len(keys) == 0 {
		return nil
	}

	tables, err := a.tables.GetLookupTables(ctx, keys)
	if err != nil {
		return fmt.Errorf("resolve lookup tables: %w", err)
	}
	if !tx.Message.IsVersioned() {
		// legacy messages carry every key inline
		return nil
	}
	if err := tx.Message.SetAddressTables(tables); err != nil {
		return fmt.Errorf("set address tables: %w", err)
	}
	a.logger.Debug("lookup tables resolved", zap.Int("tables", len(tables)))
	return nil
}

// Sign заменяет подписи транзакции подписью signer. Транзакция от роутера приходит
// с пустыми слотами подписей, поэтому они сбрасываются перед подписанием.
func Sign(tx *solana.Transaction, signer solana.PrivateKey) error {
	pub := signer.PublicKey()
	tx.Signatures = nil
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}
