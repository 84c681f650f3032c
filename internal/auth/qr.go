package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
	qrcode "github.com/skip2/go-qrcode"
)

// QR login: each player carries a printed QR code that encodes a login URL
// with a fernet-sealed token. Scanning it logs the player in on any phone at
// the table without typing a password.

var ErrBadLoginToken = errors.New("invalid or expired login token")

// NewLoginToken seals the username into a fernet token bound to the given
// signing key. Tokens are urlsafe base64, so they embed directly in a URL.
func NewLoginToken(signingKey, username string) (string, error) {
	key, err := fernet.DecodeKey(signingKey)
	if err != nil {
		return "", fmt.Errorf("decode QR signing key: %w", err)
	}
	token, err := fernet.EncryptAndSign([]byte(username), key)
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// VerifyLoginToken unseals a login token and returns the username it was
// issued for. A zero ttl disables expiry.
func VerifyLoginToken(signingKey, token string, ttl time.Duration) (string, error) {
	key, err := fernet.DecodeKey(signingKey)
	if err != nil {
		return "", fmt.Errorf("decode QR signing key: %w", err)
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), ttl, []*fernet.Key{key})
	if msg == nil {
		return "", ErrBadLoginToken
	}
	return string(msg), nil
}

// LoginURL builds the URL a player's QR code points at.
func LoginURL(baseURL, username, token string) string {
	return fmt.Sprintf("%s/api/v1/auth/qr/%s/%s", baseURL, username, token)
}

// QRCodePNG renders a login URL as a PNG image.
func QRCodePNG(url string) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, 256)
}

// GenerateSigningKey returns a fresh base64 fernet key, for first-run setups
// that don't have QR_SIGNING_KEY configured yet.
func GenerateSigningKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", err
	}
	return key.Encode(), nil
}
