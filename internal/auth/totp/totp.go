package totp

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters. SHA-256 is deliberate and differs from the SHA-1 most
// authenticator apps default to; apps that honor the algorithm parameter in
// the otpauth URI (Google Authenticator, Aegis, 1Password) work fine.
const (
	Period = 30
	Digits = otp.DigitsSix
	Skew   = 1
)

// Backup code shape: 8 random alphanumerics shown as XXXX-XXXX.
const (
	BackupCodeCount  = 10
	backupCodeLength = 8
	backupCodeGroup  = 4
)

// GenerateSecret creates a new TOTP key for the account. The returned key
// carries the base32 secret (key.Secret()) and the otpauth:// URI.
func GenerateSecret(issuer, accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  20,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key, nil
}

// QRCodeDataURL renders the key's otpauth URI as a PNG QR code wrapped in a
// data URL, ready to drop into an <img> tag.
func QRCodeDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(256, 256)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code PNG: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ValidateCode checks a passcode against the base32 secret using the
// package's SHA-256 parameters, accepting Skew periods of clock drift on
// either side.
func ValidateCode(secret, passcode string) bool {
	return ValidateCodeAt(secret, passcode, time.Now())
}

// ValidateCodeAt is ValidateCode against an explicit reference time.
func ValidateCodeAt(secret, passcode string, at time.Time) bool {
	ok, err := totp.ValidateCustom(passcode, strings.TrimSpace(secret), at, totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA256,
	})
	return err == nil && ok
}

// GenerateCode computes the passcode for the secret at the given time.
func GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(strings.TrimSpace(secret), at, totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA256,
	})
}

// GenerateBackupCodes returns BackupCodeCount fresh codes in display form
// (XXXX-XXXX). Store the normalized form, show the formatted form once.
func GenerateBackupCodes() ([]string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codes := make([]string, BackupCodeCount)
	for i := range codes {
		b := make([]byte, backupCodeLength)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to read random bytes for backup code: %w", err)
		}
		for j := range b {
			b[j] = charset[int(b[j])%len(charset)]
		}
		codes[i] = FormatBackupCode(string(b))
	}
	return codes, nil
}

// NormalizeBackupCode strips separators and upcases, so user input matches
// stored codes regardless of how the dashes were typed.
func NormalizeBackupCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToUpper(code)
}

// FormatBackupCode renders a normalized code in XXXX-XXXX display form.
func FormatBackupCode(code string) string {
	code = NormalizeBackupCode(code)
	var groups []string
	for len(code) > backupCodeGroup {
		groups = append(groups, code[:backupCodeGroup])
		code = code[backupCodeGroup:]
	}
	groups = append(groups, code)
	return strings.Join(groups, "-")
}
