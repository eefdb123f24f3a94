// Package auth provides push credentials for the uplink server.
//
// The uplink server authenticates pushes with a short-lived bearer token.
// TokenProvider mints RS256-signed JWTs from a PEM private key configured
// for the daemon; when no key is configured sync proceeds unauthenticated.
package auth

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/uplinkd/git-uplink/internal/lock"
)

// tokens are refreshed this long before their expiry to allow for clock
// drift between the daemon and the uplink server
const tokenRefreshMargin = time.Minute

// Credentials authenticates refspec pushes to the uplink server.
type Credentials struct {
	Username string
	Token    string
}

// Source yields the current user's push credentials. A nil Credentials
// with nil error means no user is configured and sync should proceed
// unauthenticated.
type Source interface {
	CurrentUser(ctx context.Context) (*Credentials, error)
}

// TokenProvider implements Source by signing JWTs with an RSA private key.
// Minted tokens are cached until close to expiry. A TokenProvider is safe
// for concurrent use.
type TokenProvider struct {
	issuer         string
	privateKeyPath string
	tokenTTL       time.Duration

	mu     lock.Mutex
	cached *Credentials
	expiry time.Time
}

// NewTokenProvider creates a provider that signs tokens as issuer using
// the PKCS#1 PEM key at privateKeyPath. ttl bounds token lifetime and
// defaults to 10 minutes.
func NewTokenProvider(issuer, privateKeyPath string, ttl time.Duration) *TokenProvider {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenProvider{
		issuer:         issuer,
		privateKeyPath: privateKeyPath,
		tokenTTL:       ttl,
	}
}

// CurrentUser returns cached credentials, minting a fresh token when the
// cached one is absent or about to expire.
func (p *TokenProvider) CurrentUser(ctx context.Context) (*Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Until(p.expiry) > tokenRefreshMargin {
		return p.cached, nil
	}

	token, expiry, err := p.mintToken()
	if err != nil {
		return nil, err
	}

	p.cached = &Credentials{Username: p.issuer, Token: token}
	p.expiry = expiry
	return p.cached, nil
}

func (p *TokenProvider) mintToken() (string, time.Time, error) {
	privatePEMData, err := os.ReadFile(p.privateKeyPath)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to read private key err:%w", err)
	}

	block, _ := pem.Decode(privatePEMData)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return "", time.Time{}, fmt.Errorf("failed to decode PEM block containing private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to parse private key err:%w", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: privateKey}, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to create signer err:%w", err)
	}

	expiry := time.Now().Add(p.tokenTTL)
	cl := jwt.Claims{
		Issuer: p.issuer,
		// issued at time, 60 seconds in the past to allow for clock drift
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-60 * time.Second)),
		Expiry:   jwt.NewNumericDate(expiry),
	}

	token, err := jwt.Signed(signer).Claims(cl).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to sign token err:%w", err)
	}

	return token, expiry, nil
}

// None is a Source with no configured user.
type None struct{}

func (None) CurrentUser(context.Context) (*Credentials, error) {
	return nil, nil
}
