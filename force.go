package force

import (
	"context"
	"crypto/rsa"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/go-salesforce-api-wrapper/internal"
	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/validation"
)

const (
	// DefaultLoginURL is the production login endpoint. Sandboxes use https://test.salesforce.com.
	DefaultLoginURL = "https://login.salesforce.com"
	// DefaultAPIVersion is the REST API version used in request paths
	DefaultAPIVersion = "v44.0"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "go-salesforce-api-wrapper/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// RateLimitConfig controls client-side throttling of outgoing API requests.
type RateLimitConfig = internal.RateLimitConfig

// Config holds the configuration for the Salesforce client.
//
// Which fields are needed depends on the login flow:
//
//   - password flow: ClientID, ClientSecret, Username, Password (and SecurityToken
//     when the org requires one)
//   - refresh token flow: ClientID, ClientSecret, RefreshToken
//   - JWT bearer flow: ClientID, Username, PrivateKey
//   - SOAP login: Username and Password only
//   - existing session: AccessToken and InstanceURL
//
// Example for the password flow:
//
//	config := &force.Config{
//		ClientID:      "3MVG9...",
//		ClientSecret:  "5F3A...",
//		Username:      "user@example.com",
//		Password:      "password",
//		SecurityToken: "token",
//	}
type Config struct {
	// ClientID and ClientSecret are the connected app's consumer key and secret.
	ClientID     string
	ClientSecret string

	// Username and Password of the integration user.
	Username string
	Password string
	// SecurityToken is appended to Password for the password and SOAP flows.
	SecurityToken string

	// LoginURL is the login endpoint. Defaults to DefaultLoginURL.
	LoginURL string `validate:"required,url"`

	// APIVersion such as "v44.0". "44.0" and "44" are accepted. Defaults to DefaultAPIVersion.
	APIVersion string `validate:"required,sfversion"`

	// InstanceURL and AccessToken restore an existing session without logging in.
	InstanceURL string `validate:"omitempty,url"`
	AccessToken string

	// RefreshToken selects the refresh token flow in Connect.
	RefreshToken string

	// PrivateKey selects the JWT bearer flow in Connect.
	PrivateKey *rsa.PrivateKey `validate:"-"`

	// UserAgent string to identify your application.
	// Defaults to DefaultUserAgent if not specified.
	UserAgent string `validate:"required,max=256,nocrlf"`

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client `validate:"-"`

	// Logger for structured diagnostics.
	// Optional. If provided, debug information will be logged during API calls.
	Logger *slog.Logger `validate:"-"`

	// RateLimit throttles outgoing API requests. Unlimited when nil.
	RateLimit *RateLimitConfig `validate:"-"`
}

// HTTPClient defines the behavior required from the internal HTTP client.
type HTTPClient interface {
	// NewRequest creates a new authenticated request. Relative paths are
	// resolved against /services/data/{version}/ on the instance.
	NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error)

	// NewJSONRequest creates a request whose body is v encoded as JSON.
	NewJSONRequest(ctx context.Context, method, path string, v any) (*http.Request, error)

	// Do executes a request and decodes a JSON response body into v.
	Do(req *http.Request, v any) (*http.Response, error)

	// DoRaw executes a request and returns the raw response body.
	DoRaw(req *http.Request) ([]byte, *http.Response, error)

	// APIUsage returns the last API usage reported by Salesforce.
	APIUsage() types.APIUsage
}

// Client is the main Salesforce API client.
//
// A client is created without a session. Call Connect, or one of the explicit
// login methods, before making API calls; calls made without a session fail
// with a StateError wrapping errors.ErrNotLoggedIn.
type Client struct {
	client    HTTPClient
	auth      *internal.Authenticator
	session   *internal.Session
	conn      *internal.ConnectionManager
	validator *internal.Validator
	config    Config
	logger    *slog.Logger
}

// NewClient creates a new Salesforce client with the provided configuration.
// It validates the configuration and fills in defaults; it does not authenticate.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &ClientError{Op: "new client", Err: &pkgerrs.ConfigError{Message: "config cannot be nil"}}
	}

	cfg := *config
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	version, err := validation.NormalizeAPIVersion(cfg.APIVersion)
	if err != nil {
		return nil, &ClientError{Op: "new client", Err: &pkgerrs.ConfigError{Field: "APIVersion", Message: err.Error()}}
	}
	cfg.APIVersion = version

	v := internal.NewValidator()
	if err := v.Struct(&cfg); err != nil {
		return nil, &ClientError{Op: "new client", Err: err}
	}

	auth, err := internal.NewAuthenticator(cfg.HTTPClient, cfg.ClientID, cfg.ClientSecret, cfg.LoginURL, cfg.UserAgent, cfg.Logger)
	if err != nil {
		return nil, &ClientError{Op: "new client", Err: err}
	}

	session := internal.NewSession(cfg.APIVersion)
	if cfg.InstanceURL != "" {
		session.SetInstanceURL(cfg.InstanceURL)
	}
	if cfg.AccessToken != "" {
		session.SetToken(&types.AccessToken{TokenType: "Bearer", Value: cfg.AccessToken})
	}

	return &Client{
		client:    internal.NewClient(cfg.HTTPClient, session, cfg.UserAgent, cfg.RateLimit, cfg.Logger),
		auth:      auth,
		session:   session,
		conn:      internal.NewConnectionManager(),
		validator: v,
		config:    cfg,
		logger:    cfg.Logger,
	}, nil
}

// SetLoginEndpoint changes the login endpoint, e.g. to https://test.salesforce.com for a sandbox.
func (c *Client) SetLoginEndpoint(endpoint string) error {
	if err := c.auth.SetLoginURL(endpoint); err != nil {
		return &ClientError{Op: "set login endpoint", Err: err}
	}
	return nil
}

// SetVersion changes the API version used in request paths. "v44.0", "44.0" and "44" are accepted.
func (c *Client) SetVersion(version string) error {
	normalized, err := validation.NormalizeAPIVersion(version)
	if err != nil {
		return &ClientError{Op: "set version", Err: &pkgerrs.ConfigError{Field: "APIVersion", Message: err.Error()}}
	}
	c.session.SetVersion(normalized)
	return nil
}

// SetInstanceURL sets the instance API requests are sent to.
func (c *Client) SetInstanceURL(instanceURL string) {
	c.session.SetInstanceURL(instanceURL)
}

// SetAccessToken sets a Bearer access token obtained elsewhere.
func (c *Client) SetAccessToken(token string) {
	c.session.SetToken(&types.AccessToken{TokenType: "Bearer", Value: token})
}

// InstanceURL returns the instance URL of the current session.
func (c *Client) InstanceURL() string {
	return c.session.InstanceURL()
}

// AccessToken returns the current access token, or nil before login.
func (c *Client) AccessToken() *types.AccessToken {
	return c.session.Token()
}

// Version returns the API version used in request paths.
func (c *Client) Version() string {
	return c.session.Version()
}

// IsLoggedIn reports whether the client holds an access token and instance URL.
func (c *Client) IsLoggedIn() bool {
	_, _, err := c.session.Credentials("")
	return err == nil
}

// APIUsage returns the org's API usage as reported on the most recent response.
func (c *Client) APIUsage() types.APIUsage {
	return c.client.APIUsage()
}

// LoginWithCredential logs in with the OAuth2 username-password flow.
func (c *Client) LoginWithCredential(ctx context.Context, username, password string) error {
	if err := c.loginWithCredential(ctx, username, password); err != nil {
		return err
	}
	c.conn.MarkInitialized()
	return nil
}

// Refresh obtains a new access token with the OAuth2 refresh token flow.
func (c *Client) Refresh(ctx context.Context, refreshToken string) error {
	if err := c.refresh(ctx, refreshToken); err != nil {
		return err
	}
	c.conn.MarkInitialized()
	return nil
}

// LoginBySOAP logs in with the partner SOAP API. No connected app is required.
func (c *Client) LoginBySOAP(ctx context.Context, username, password string) error {
	if err := c.loginBySOAP(ctx, username, password); err != nil {
		return err
	}
	c.conn.MarkInitialized()
	return nil
}

// LoginWithJWT logs in with the OAuth2 JWT bearer flow. The connected app must
// have the certificate matching key and be pre-authorized for username.
func (c *Client) LoginWithJWT(ctx context.Context, username string, key *rsa.PrivateKey) error {
	if err := c.loginWithJWT(ctx, username, key); err != nil {
		return err
	}
	c.conn.MarkInitialized()
	return nil
}

// Connect establishes a session using the flow implied by the configuration:
//
//   - AccessToken and InstanceURL set: no request is made
//   - PrivateKey set: JWT bearer flow
//   - RefreshToken set: refresh token flow
//   - Username and Password with a ClientID: password flow
//   - Username and Password without a ClientID: SOAP login
//
// Once Connect succeeds further calls are no-ops. A failed Connect can be retried.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Initialize(ctx, c.initialize)
}

// initialize performs the underlying connection setup work.
func (c *Client) initialize(ctx context.Context) error {
	cfg := c.config
	switch {
	case c.IsLoggedIn():
		c.logger.Debug("salesforce session restored", "instance_url", c.session.InstanceURL())
		return nil
	case cfg.PrivateKey != nil:
		return c.loginWithJWT(ctx, cfg.Username, cfg.PrivateKey)
	case cfg.RefreshToken != "":
		return c.refresh(ctx, cfg.RefreshToken)
	case cfg.Username != "" && cfg.Password != "":
		if cfg.ClientID != "" {
			return c.loginWithCredential(ctx, cfg.Username, cfg.Password)
		}
		return c.loginBySOAP(ctx, cfg.Username, cfg.Password)
	default:
		return &ClientError{Op: "connect", Err: &pkgerrs.ConfigError{
			Message: "no credentials configured: set AccessToken and InstanceURL, PrivateKey, RefreshToken, or Username and Password",
		}}
	}
}

func (c *Client) loginWithCredential(ctx context.Context, username, password string) error {
	tok, err := c.auth.PasswordToken(ctx, username, password+c.config.SecurityToken)
	if err != nil {
		return &ClientError{Op: "login", Err: err}
	}
	return c.applyToken("login", tok, tok.TokenType)
}

func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	tok, err := c.auth.RefreshToken(ctx, refreshToken)
	if err != nil {
		return &ClientError{Op: "refresh", Err: err}
	}
	return c.applyToken("refresh", tok, "Bearer")
}

func (c *Client) loginWithJWT(ctx context.Context, username string, key *rsa.PrivateKey) error {
	tok, err := c.auth.JWTToken(ctx, username, key)
	if err != nil {
		return &ClientError{Op: "jwt login", Err: err}
	}
	return c.applyToken("jwt login", tok, tok.TokenType)
}

func (c *Client) loginBySOAP(ctx context.Context, username, password string) error {
	result, err := c.auth.SOAPLogin(ctx, username, password+c.config.SecurityToken, c.session.Version())
	if err != nil {
		return &ClientError{Op: "soap login", Err: err}
	}

	c.session.Set(&types.AccessToken{TokenType: "Bearer", Value: result.SessionID}, internal.InstanceURLFromServerURL(result.ServerURL))
	c.logger.Info("logged in to salesforce", "flow", "soap", "instance_url", c.session.InstanceURL())
	return nil
}

// applyToken stores a token endpoint response as the current session.
func (c *Client) applyToken(op string, tok *types.TokenResponse, tokenType string) error {
	if tokenType == "" {
		return &ClientError{Op: op, Err: &pkgerrs.StateError{
			Operation: op,
			Message:   "token response has no token_type",
			Err:       pkgerrs.ErrNotLoggedIn,
		}}
	}

	instanceURL := tok.InstanceURL
	if instanceURL == "" {
		instanceURL = c.session.InstanceURL()
	}
	c.session.Set(&types.AccessToken{TokenType: tokenType, Value: tok.AccessToken, IssuedAt: tok.IssuedAt}, instanceURL)

	c.logger.Info("logged in to salesforce", "flow", op, "instance_url", instanceURL)
	return nil
}

// ClientError represents an error from the Salesforce client.
// It records the operation that failed and wraps the typed error from
// pkg/errors, so callers can use errors.As to inspect the cause.
type ClientError struct {
	// Op is the client operation that failed, e.g. "query" or "login"
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface for ClientError.
func (e *ClientError) Error() string {
	msg := "unknown error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return "salesforce client error: " + msg
	}
	return "salesforce client error: " + e.Op + ": " + msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// wrap returns err as a *ClientError for op, or nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ClientError{Op: op, Err: err}
}
