package esign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"letterdesk/internal/platform/config"
)

const jwtScope = "signature"

const consentScopes = "signature impersonation"

// Client talks to the signing provider's OAuth and REST APIs and keeps
// authenticated admin sessions in the registry.
type Client struct {
	cfg      config.ESignConfig
	http     *http.Client
	registry *Registry
	now      func() time.Time
}

func NewClient(cfg config.ESignConfig, registry *Registry) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: timeout},
		registry: registry,
		now:      time.Now,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.IntegrationKey != ""
}

func (c *Client) JWTConfigured() bool {
	return c.cfg.IntegrationKey != "" && c.cfg.PrivateKey != "" && c.cfg.UserID != ""
}

// AuthURL starts the authorization-code flow.
func (c *Client) AuthURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("scope", jwtScope)
	q.Set("client_id", c.cfg.IntegrationKey)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return c.cfg.OAuthBaseURL + "/oauth/auth?" + q.Encode()
}

// ConsentURL is where an impersonated user grants application consent for
// the JWT flow.
func (c *Client) ConsentURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("scope", consentScopes)
	q.Set("client_id", c.cfg.IntegrationKey)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	return c.cfg.OAuthBaseURL + "/oauth/auth?" + q.Encode()
}

// SessionFor returns the cached session for an admin, refreshing through
// the JWT grant when the token is stale. Without a session or a configured
// JWT key it reports ErrAuthRequired.
func (c *Client) SessionFor(ctx context.Context, email string) (*Session, error) {
	if session, ok := c.registry.Get(email); ok && !session.expiredAt(c.now()) {
		return session, nil
	}
	if c.JWTConfigured() {
		return c.AuthenticateJWT(ctx, email)
	}
	return nil, ErrAuthRequired
}

// ExchangeCode completes the authorization-code flow and caches the session.
func (c *Client) ExchangeCode(ctx context.Context, code, adminEmail string) (*Session, error) {
	if !c.Configured() || c.cfg.Secret == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.IntegrationKey, c.cfg.Secret)

	token, err := c.doToken(req)
	if err != nil {
		return nil, err
	}
	return c.buildSession(ctx, token, adminEmail)
}

// AuthenticateJWT runs the service-account grant for the impersonated user
// and caches the resulting session under adminEmail.
func (c *Client) AuthenticateJWT(ctx context.Context, adminEmail string) (*Session, error) {
	if !c.JWTConfigured() {
		return nil, ErrNotConfigured
	}

	assertion, err := c.buildAssertion()
	if err != nil {
		return nil, fmt.Errorf("build assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	token, err := c.doToken(req)
	if err != nil {
		return nil, err
	}
	return c.buildSession(ctx, token, adminEmail)
}

func (c *Client) buildAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.cfg.PrivateKey))
	if err != nil {
		return "", err
	}

	oauthHost := c.cfg.OAuthBaseURL
	if parsed, err := url.Parse(oauthHost); err == nil && parsed.Host != "" {
		oauthHost = parsed.Host
	}

	now := c.now()
	claims := jwt.MapClaims{
		"iss":   c.cfg.IntegrationKey,
		"sub":   c.cfg.UserID,
		"aud":   oauthHost,
		"iat":   now.Unix(),
		"exp":   now.Add(10 * time.Minute).Unix(),
		"scope": jwtScope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) doToken(req *http.Request) (*tokenResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if isConsentRequired(resp.StatusCode, body) {
			return nil, &ConsentError{ConsentURL: c.ConsentURL()}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &token, nil
}

func isConsentRequired(status int, body []byte) bool {
	return status == http.StatusBadRequest && strings.Contains(string(body), "consent_required")
}

type userInfoResponse struct {
	Sub      string `json:"sub"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Accounts []struct {
		AccountID   string `json:"account_id"`
		IsDefault   bool   `json:"is_default"`
		AccountName string `json:"account_name"`
		BaseURI     string `json:"base_uri"`
	} `json:"accounts"`
}

func (c *Client) buildSession(ctx context.Context, token *tokenResponse, adminEmail string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.OAuthBaseURL+"/oauth/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if len(info.Accounts) == 0 {
		return nil, fmt.Errorf("userinfo returned no accounts")
	}

	account := info.Accounts[0]
	for _, candidate := range info.Accounts {
		if candidate.IsDefault {
			account = candidate
			break
		}
	}

	now := c.now()
	session := &Session{
		Email:       adminEmail,
		AccessToken: token.AccessToken,
		TokenExpiry: now.Add(time.Duration(token.ExpiresIn) * time.Second),
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
		BaseURI:     strings.TrimSuffix(account.BaseURI, "/"),
		CreatedAt:   now,
	}
	c.registry.Put(session)
	return session, nil
}

func (c *Client) restURL(session *Session, path string) string {
	base := session.BaseURI
	if base == "" {
		base = strings.TrimSuffix(c.cfg.BaseURL, "/")
	}
	return fmt.Sprintf("%s/restapi/v2.1/accounts/%s%s", base, session.AccountID, path)
}

func (c *Client) doJSON(ctx context.Context, session *Session, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.restURL(session, path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.registry.Delete(session.Email)
		return ErrAuthRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}
