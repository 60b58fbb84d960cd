// Package identity obtains bearer tokens from the identity authority using
// the client-credentials grant with a certificate-signed client assertion.
package identity

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"presencelight/internal/core"
	"presencelight/internal/idgen"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// GraphScope is the only audience tokens are requested for
	GraphScope = "https://graph.microsoft.com/.default"

	DefaultAuthorityURL = "https://login.microsoftonline.com"

	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime   = 10 * time.Minute
)

// Config contains the identity authority settings
type Config struct {
	TenantID     string
	ClientID     string
	CertPath     string        // PEM file with certificate and private key
	AuthorityURL string        // defaults to DefaultAuthorityURL
	Scope        string        // defaults to GraphScope
	Lifetime     time.Duration // used when the authority omits expires_in
	Timeout      time.Duration
}

// CertificateProvider implements core.CredentialProvider. Each GetToken call
// reloads the certificate and performs a full token request; nothing is cached.
type CertificateProvider struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewCertificateProvider creates a new provider
func NewCertificateProvider(config Config, logger *slog.Logger) *CertificateProvider {
	if config.AuthorityURL == "" {
		config.AuthorityURL = DefaultAuthorityURL
	}
	if config.Scope == "" {
		config.Scope = GraphScope
	}
	if config.Lifetime <= 0 {
		config.Lifetime = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &CertificateProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With("component", "identity"),
		now:    time.Now,
	}
}

// TokenURL returns the authority's v2.0 token endpoint for the tenant
func (p *CertificateProvider) TokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token",
		strings.TrimRight(p.config.AuthorityURL, "/"), url.PathEscape(p.config.TenantID))
}

// GetToken performs the client-credentials handshake and returns a fresh credential
func (p *CertificateProvider) GetToken(ctx context.Context) (core.Credential, error) {
	bundle, err := LoadBundle(p.config.CertPath)
	if err != nil {
		return core.Credential{}, core.AuthError("load certificate", err)
	}

	tokenURL := p.TokenURL()
	assertion, err := p.clientAssertion(bundle, tokenURL)
	if err != nil {
		return core.Credential{}, core.AuthError("sign client assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.config.ClientID)
	form.Set("scope", p.config.Scope)
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.Credential{}, core.AuthError("create token request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	obtainedAt := p.now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return core.Credential{}, core.AuthError("send token request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Credential{}, core.AuthError("read token response", err)
	}

	var tokenResp struct {
		TokenType        string      `json:"token_type"`
		AccessToken      string      `json:"access_token"`
		ExpiresIn        json.Number `json:"expires_in"` // number or numeric string
		Error            string      `json:"error"`
		ErrorDescription string      `json:"error_description"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return core.Credential{}, core.AuthError("token request",
				fmt.Errorf("authority returned status %d: %s", resp.StatusCode, string(respBody)))
		}
		return core.Credential{}, core.AuthError("parse token response", err)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return core.Credential{}, core.AuthError("token request",
			fmt.Errorf("authority rejected request (status %d): %s: %s",
				resp.StatusCode, tokenResp.Error, tokenResp.ErrorDescription))
	}
	if tokenResp.AccessToken == "" {
		return core.Credential{}, core.AuthError("token request", errors.New("authority returned an empty access token"))
	}

	ttl := p.config.Lifetime
	if tokenResp.ExpiresIn != "" {
		secs, err := strconv.Atoi(tokenResp.ExpiresIn.String())
		if err != nil {
			return core.Credential{}, core.AuthError("parse token response",
				fmt.Errorf("invalid expires_in value '%s': %w", tokenResp.ExpiresIn, err))
		}
		ttl = time.Duration(secs) * time.Second
	}

	p.logger.Debug("token acquired",
		"thumbprint", bundle.Thumbprint(),
		"expires_in", ttl,
	)

	return core.Credential{
		Token:      tokenResp.AccessToken,
		ObtainedAt: obtainedAt,
		TTL:        ttl,
	}, nil
}

// clientAssertion signs the JWT the authority uses to authenticate the client.
// The x5t header identifies the certificate registered for the application.
func (p *CertificateProvider) clientAssertion(bundle *Bundle, audience string) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.config.ClientID,
		Subject:   p.config.ClientID,
		Audience:  jwt.ClaimStrings{audience},
		ID:        idgen.New(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}

	thumb := sha1.Sum(bundle.Leaf().Raw)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["x5t"] = base64.RawURLEncoding.EncodeToString(thumb[:])

	return token.SignedString(bundle.PrivateKey)
}

// Ensure CertificateProvider implements core.CredentialProvider
var _ core.CredentialProvider = (*CertificateProvider)(nil)
