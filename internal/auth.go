package internal

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

const (
	tokenEndpointPath = "/services/oauth2/token"
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	jwtAssertionTTL   = 3 * time.Minute
)

// Authenticator exchanges credentials for an access token at the login endpoint.
type Authenticator struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	loginURL     string
	logger       *slog.Logger

	now func() time.Time
}

// NewAuthenticator creates a new authenticator for the given login endpoint
// (e.g. https://login.salesforce.com or https://test.salesforce.com).
func NewAuthenticator(httpClient *http.Client, clientID, clientSecret, loginURL, userAgent string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &Authenticator{
		client:       httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		logger:       logger,
		now:          time.Now,
	}
	if err := a.SetLoginURL(loginURL); err != nil {
		return nil, err
	}
	return a, nil
}

// SetLoginURL changes the login endpoint used by every flow.
func (a *Authenticator) SetLoginURL(loginURL string) error {
	parsed, err := url.Parse(loginURL)
	if err != nil {
		return &pkgerrs.ConfigError{Field: "LoginURL", Message: fmt.Sprintf("failed to parse login URL: %v", err)}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return &pkgerrs.ConfigError{Field: "LoginURL", Message: fmt.Sprintf("login URL %q must be absolute", loginURL)}
	}
	a.loginURL = strings.TrimRight(parsed.String(), "/")
	return nil
}

// LoginURL returns the login endpoint without a trailing slash.
func (a *Authenticator) LoginURL() string {
	return a.loginURL
}

// TokenURL returns the OAuth2 token endpoint.
func (a *Authenticator) TokenURL() string {
	return a.loginURL + tokenEndpointPath
}

func (a *Authenticator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// oauthContext makes golang.org/x/oauth2 use our HTTP client and user agent.
func (a *Authenticator) oauthContext(ctx context.Context) context.Context {
	base := a.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := &http.Client{
		Transport:     &userAgentTransport{base: base, userAgent: a.userAgent},
		Timeout:       a.client.Timeout,
		Jar:           a.client.Jar,
		CheckRedirect: a.client.CheckRedirect,
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// PasswordToken performs the OAuth2 username-password flow.
func (a *Authenticator) PasswordToken(ctx context.Context, username, password string) (*types.TokenResponse, error) {
	if a.clientID == "" || a.clientSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID and ClientSecret are required for the password flow"}
	}

	tok, err := a.oauthConfig().PasswordCredentialsToken(a.oauthContext(ctx), username, password)
	if err != nil {
		return nil, authErrorFrom(err)
	}

	a.logger.Debug("salesforce login", "flow", "password", "instance_url", tok.Extra("instance_url"))
	return tokenResponseFrom(tok), nil
}

// RefreshToken performs the OAuth2 refresh token flow.
func (a *Authenticator) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if a.clientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID is required for the refresh token flow"}
	}
	if refreshToken == "" {
		return nil, &pkgerrs.ConfigError{Field: "RefreshToken", Message: "refresh token cannot be empty"}
	}

	src := a.oauthConfig().TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, authErrorFrom(err)
	}

	a.logger.Debug("salesforce login", "flow", "refresh_token", "instance_url", tok.Extra("instance_url"))
	return tokenResponseFrom(tok), nil
}

// JWTToken performs the OAuth2 JWT bearer flow, signing the assertion with key.
func (a *Authenticator) JWTToken(ctx context.Context, username string, key *rsa.PrivateKey) (*types.TokenResponse, error) {
	if a.clientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID is required for the JWT bearer flow"}
	}
	if key == nil {
		return nil, &pkgerrs.ConfigError{Field: "PrivateKey", Message: "private key is required for the JWT bearer flow"}
	}

	assertion, err := a.signAssertion(username, key)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to sign JWT assertion: %w", err)}
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	resp, err := a.postToken(ctx, form)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("salesforce login", "flow", "jwt_bearer", "instance_url", resp.InstanceURL)
	return resp, nil
}

func (a *Authenticator) signAssertion(username string, key *rsa.PrivateKey) (string, error) {
	claims := jwt.MapClaims{
		"iss": a.clientID,
		"sub": username,
		"aud": a.loginURL,
		"exp": jwt.NewNumericDate(a.now().Add(jwtAssertionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// postToken posts form to the token endpoint and decodes the token response.
func (a *Authenticator) postToken(ctx context.Context, form url.Values) (*types.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		authErr := &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		if tokenErr, ok := ParseTokenError(bodyBytes); ok {
			authErr.ErrorCode = tokenErr.Error
			authErr.Description = tokenErr.ErrorDescription
		}
		return nil, authErr
	}

	var tokenResp types.TokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "token", Err: err}
	}

	if tokenResp.AccessToken == "" {
		return nil, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        errors.New("access token was empty in response"),
		}
	}

	return &tokenResp, nil
}

func tokenResponseFrom(tok *oauth2.Token) *types.TokenResponse {
	extra := func(key string) string {
		s, _ := tok.Extra(key).(string)
		return s
	}
	return &types.TokenResponse{
		ID:           extra("id"),
		IssuedAt:     extra("issued_at"),
		AccessToken:  tok.AccessToken,
		InstanceURL:  extra("instance_url"),
		Signature:    extra("signature"),
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Scope:        extra("scope"),
	}
}

// authErrorFrom converts an oauth2 failure into an AuthError carrying the
// token endpoint's error and error_description.
func authErrorFrom(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return &pkgerrs.AuthError{Err: err}
	}

	authErr := &pkgerrs.AuthError{
		Body:        string(retrieveErr.Body),
		ErrorCode:   retrieveErr.ErrorCode,
		Description: retrieveErr.ErrorDescription,
		Err:         err,
	}
	if retrieveErr.Response != nil {
		authErr.StatusCode = retrieveErr.Response.StatusCode
	}
	if authErr.ErrorCode == "" {
		if tokenErr, ok := ParseTokenError(retrieveErr.Body); ok {
			authErr.ErrorCode = tokenErr.Error
			authErr.Description = tokenErr.ErrorDescription
		}
	}
	return authErr
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
