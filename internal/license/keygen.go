// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

var ErrLicenseRequired = errors.New("license key is required")

type Config struct {
	Key          string
	AccountID    string
	ProductID    string
	ProductToken string
}

// Enabled reports whether Keygen validation is configured.
func (c Config) Enabled() bool {
	return c.AccountID != "" && c.ProductID != "" && c.ProductToken != ""
}

// KeygenValidator handles license validation using Keygen.sh
type KeygenValidator struct {
	config Config
	logger *zap.Logger
}

func NewKeygenValidator(config Config, logger *zap.Logger) *KeygenValidator {
	return &KeygenValidator{
		config: config,
		logger: logger.Named("license"),
	}
}

// Check validates the configured license before the engine starts.
// Without a Keygen product the check is skipped: the engine is then run self-hosted.
func (kv *KeygenValidator) Check(ctx context.Context) error {
	if !kv.config.Enabled() {
		kv.logger.Info("Keygen not configured, skipping license validation")
		return nil
	}
	if kv.config.Key == "" {
		return ErrLicenseRequired
	}
	return kv.ValidateLicense(ctx, kv.config.Key)
}

// ValidateLicense validates a license key with Keygen, activating this machine on first use.
func (kv *KeygenValidator) ValidateLicense(ctx context.Context, licenseKey string) error {
	kv.logger.Info("Validating license", zap.String("key", maskKey(licenseKey)))

	fingerprint, err := Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	kv.configure(licenseKey)

	license, err := keygen.Validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		kv.logger.Info("License not activated, attempting activation")
		machine, activateErr := license.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		kv.logger.Info("License activated", zap.String("machine_id", machine.ID))

	case errors.Is(err, keygen.ErrLicenseExpired):
		return fmt.Errorf("license has expired")

	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if license == nil {
		return fmt.Errorf("license not found")
	}

	kv.logger.Info("License validation successful", zap.String("license_id", license.ID))
	return nil
}

func (kv *KeygenValidator) configure(licenseKey string) {
	keygen.Account = kv.config.AccountID
	keygen.Product = kv.config.ProductID
	keygen.Token = kv.config.ProductToken
	keygen.LicenseKey = licenseKey
}

// Fingerprint identifies this machine: hostname, first hardware address and OS, hashed.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	sort.Strings(macs)
	mac := "none"
	if len(macs) > 0 {
		mac = macs[0]
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", hash), nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}
