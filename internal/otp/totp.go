// Package otp implements both second factors: time based codes (RFC 6238)
// and emailed one-time codes backed by the secret cache.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30 // seconds

	defaultSkew = 1 // steps tolerated either side of now
)

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

type TOTPConfig struct {
	// Issuer shown by authenticator apps next to the account label
	Issuer string

	// Skew is the number of 30s steps tolerated either side of the current one
	// Negative disables tolerance entirely, zero means the default of one step
	Skew int
}

type TOTP struct {
	issuer string
	skew   int
}

func NewTOTP(cfg TOTPConfig) *TOTP {
	skew := cfg.Skew
	switch {
	case skew == 0:
		skew = defaultSkew
	case skew < 0:
		skew = 0
	}

	return &TOTP{issuer: cfg.Issuer, skew: skew}
}

// GenerateSecret returns a fresh random secret, base32 without padding
// Provisioned once per user and reused across sessions
func (t *TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("error while generating totp secret. Err: %w", err)
	}

	return base32NoPadding.EncodeToString(raw), nil
}

// ProvisioningURI encodes the enrollment payload for QR or manual entry
func (t *TOTP) ProvisioningURI(secret string, account string) string {
	label := url.PathEscape(t.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", strconv.Itoa(totpDigits))
	v.Set("period", strconv.Itoa(totpPeriod))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks the submitted code against the secret at the given moment
// Pure function of its inputs: no storage, no network, no ambient clock
func (t *TOTP) Verify(secret string, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != totpDigits || !isNumeric(trimmed) {
		return false
	}

	raw, err := base32NoPadding.DecodeString(strings.ToUpper(secret))
	if err != nil || len(raw) == 0 {
		return false
	}

	baseCounter := now.Unix() / totpPeriod
	for step := -t.skew; step <= t.skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}

		generated := hotpCode(raw, counter)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true
		}
	}

	return false
}

// codeAt computes the valid code for the moment, used for enrollment previews and tests
func (t *TOTP) codeAt(secret string, now time.Time) (string, error) {
	raw, err := base32NoPadding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("bad totp secret. Err: %w", err)
	}

	return hotpCode(raw, now.Unix()/totpPeriod), nil
}

// hotpCode is the RFC 4226 dynamic truncation over HMAC-SHA1
func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", totpDigits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
