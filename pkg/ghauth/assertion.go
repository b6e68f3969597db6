package ghauth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pre-encoded {"alg":"RS256","typ":"JWT"} header. GitHub Apps accept RS256
// only, so the header never varies.
const encodedAssertionHeader = "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9"

const (
	// assertionBackdate tolerates clock drift between us and the verifier.
	assertionBackdate = 60 * time.Second
	// assertionLifetime is the platform's hard ceiling for app JWTs.
	assertionLifetime = 10 * time.Minute
)

type assertionClaims struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Issuer    string `json:"iss"`
}

// Minter signs short-lived app-identity assertions used to obtain
// installation tokens. Construction fails fast on a bad key: signing is a
// configuration concern, not a runtime one.
type Minter struct {
	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

func NewMinter(appID, privateKeyPEM string) (*Minter, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, errors.New("app id is required")
	}
	key, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Minter{appID: appID, key: key, now: time.Now}, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA key, accepting PKCS#1 and
// PKCS#8. Escaped newlines are normalized first: keys delivered through
// environment variables commonly arrive with literal `\n` sequences.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	pemText = strings.ReplaceAll(strings.TrimSpace(pemText), `\n`, "\n")
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("private key is not valid PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

// Mint returns a signed assertion with iat backdated by 60s and exp 600s
// out, both mandated by the verifier's own tolerance.
func (m *Minter) Mint() (string, error) {
	now := m.now()
	claims, err := json.Marshal(assertionClaims{
		IssuedAt:  now.Add(-assertionBackdate).Unix(),
		ExpiresAt: now.Add(assertionLifetime).Unix(),
		Issuer:    m.appID,
	})
	if err != nil {
		return "", fmt.Errorf("encode assertion claims: %w", err)
	}
	signingInput := encodedAssertionHeader + "." + base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, m.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
