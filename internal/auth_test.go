package internal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
)

const successTokenBody = `{
	"id": "https://login.salesforce.com/id/00Dx0000000BV7z/005x00000012Q9P",
	"issued_at": "1278448832702",
	"instance_url": "https://na1.salesforce.com",
	"signature": "0CmxinZir53Yex7nE0TD+zMpvIWYGb/bdJh6XfOH6EQ=",
	"access_token": "00Dx0000000BV7z!AR8AQAxo9UfVkh8AlV0Gomt9Czx9LjHnSSpwBMmbRcgKFmxOtvxjTrKW19ye6PE3Ds1eQz3z8jr3W7_VbWmEu4Q8TVGSTHxs",
	"token_type": "Bearer"
}`

// mockTokenServer is a mock OAuth2 token endpoint.
type mockTokenServer struct {
	t          *testing.T
	statusCode int
	body       string
	requests   atomic.Int32

	mu        sync.Mutex
	form      url.Values
	userAgent string
}

func (s *mockTokenServer) received() (url.Values, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form, s.userAgent
}

func (s *mockTokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.Method != http.MethodPost {
		s.t.Errorf("expected POST request, got %s", r.Method)
	}
	if r.URL.Path != "/services/oauth2/token" {
		s.t.Errorf("expected token path, got %s", r.URL.Path)
	}
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("failed to parse form: %v", err)
	}
	s.mu.Lock()
	s.form = r.PostForm
	s.userAgent = r.UserAgent()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.statusCode)
	fmt.Fprint(w, s.body)
}

func newTestAuthenticator(t *testing.T, handler http.Handler, clientID, clientSecret string) (*Authenticator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewAuthenticator(server.Client(), clientID, clientSecret, server.URL, "sf-test/1.0", nil)
	require.NoError(t, err)
	return a, server
}

func TestAuthenticator_PasswordToken(t *testing.T) {
	mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: successTokenBody}
	a, _ := newTestAuthenticator(t, mock, "client-id", "client-secret")

	tok, err := a.PasswordToken(context.Background(), "user@example.com", "passTOKEN")
	require.NoError(t, err)

	form, userAgent := mock.received()
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
	assert.Equal(t, "user@example.com", form.Get("username"))
	assert.Equal(t, "passTOKEN", form.Get("password"))
	assert.Equal(t, "sf-test/1.0", userAgent)

	assert.Equal(t, "https://na1.salesforce.com", tok.InstanceURL)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "1278448832702", tok.IssuedAt)
	assert.Equal(t, "https://login.salesforce.com/id/00Dx0000000BV7z/005x00000012Q9P", tok.ID)
	assert.Equal(t, "0CmxinZir53Yex7nE0TD+zMpvIWYGb/bdJh6XfOH6EQ=", tok.Signature)
	assert.True(t, strings.HasPrefix(tok.AccessToken, "00Dx0000000BV7z!"))
}

func TestAuthenticator_PasswordToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCode   string
		wantDesc   string
		wantStatus int
	}{
		{
			name:       "invalid grant",
			statusCode: http.StatusBadRequest,
			body:       `{"error":"invalid_grant","error_description":"authentication failure"}`,
			wantCode:   "invalid_grant",
			wantDesc:   "authentication failure",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid client",
			statusCode: http.StatusUnauthorized,
			body:       `{"error":"invalid_client_id","error_description":"client identifier invalid"}`,
			wantCode:   "invalid_client_id",
			wantDesc:   "client identifier invalid",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "server error without body",
			statusCode: http.StatusInternalServerError,
			body:       ``,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTokenServer{t: t, statusCode: tt.statusCode, body: tt.body}
			a, _ := newTestAuthenticator(t, mock, "client-id", "client-secret")

			_, err := a.PasswordToken(context.Background(), "user", "pass")
			require.Error(t, err)

			var authErr *pkgerrs.AuthError
			require.True(t, errors.As(err, &authErr), "expected AuthError, got %T", err)
			assert.Equal(t, tt.wantStatus, authErr.StatusCode)
			assert.Equal(t, tt.wantCode, authErr.ErrorCode)
			assert.Equal(t, tt.wantDesc, authErr.Description)
			assert.Equal(t, tt.wantCode, authErr.TokenError().Error)
		})
	}
}

func TestAuthenticator_PasswordToken_RequiresClientCredentials(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
	}{
		{name: "missing client id", clientSecret: "secret"},
		{name: "missing client secret", clientID: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: successTokenBody}
			a, _ := newTestAuthenticator(t, mock, tt.clientID, tt.clientSecret)

			_, err := a.PasswordToken(context.Background(), "user", "pass")

			var cfgErr *pkgerrs.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, int32(0), mock.requests.Load())
		})
	}
}

func TestAuthenticator_RefreshToken(t *testing.T) {
	body := `{"access_token":"refreshed","instance_url":"https://na2.salesforce.com","token_type":"Bearer","issued_at":"1700000000000","id":"id-url","signature":"sig"}`
	mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: body}
	a, _ := newTestAuthenticator(t, mock, "client-id", "client-secret")

	tok, err := a.RefreshToken(context.Background(), "refresh-123")
	require.NoError(t, err)

	form, _ := mock.received()
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-123", form.Get("refresh_token"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))

	assert.Equal(t, "refreshed", tok.AccessToken)
	assert.Equal(t, "https://na2.salesforce.com", tok.InstanceURL)
	assert.Equal(t, "1700000000000", tok.IssuedAt)
}

func TestAuthenticator_RefreshToken_Errors(t *testing.T) {
	t.Run("expired refresh token", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"expired access/refresh token"}`}
		a, _ := newTestAuthenticator(t, mock, "client-id", "client-secret")

		_, err := a.RefreshToken(context.Background(), "stale")

		var authErr *pkgerrs.AuthError
		require.True(t, errors.As(err, &authErr), "expected AuthError, got %T", err)
		assert.Equal(t, "invalid_grant", authErr.ErrorCode)
		assert.Equal(t, "expired access/refresh token", authErr.Description)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: successTokenBody}
		a, _ := newTestAuthenticator(t, mock, "client-id", "client-secret")

		_, err := a.RefreshToken(context.Background(), "")

		var cfgErr *pkgerrs.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "RefreshToken", cfgErr.Field)
		assert.Equal(t, int32(0), mock.requests.Load())
	})
}

func TestAuthenticator_JWTToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		claims    jwt.MapClaims
		grantType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		grantType = r.PostForm.Get("grant_type")

		parsed, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"invalid assertion"}`)
			return
		}
		claims = parsed.Claims.(jwt.MapClaims)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, successTokenBody)
	}))
	defer server.Close()

	a, err := NewAuthenticator(server.Client(), "consumer-key", "", server.URL, "sf-test/1.0", nil)
	require.NoError(t, err)
	fixed := time.Now()
	a.now = func() time.Time { return fixed }

	tok, err := a.JWTToken(context.Background(), "user@example.com", key)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, jwtBearerGrant, grantType)
	assert.Equal(t, "consumer-key", claims["iss"])
	assert.Equal(t, "user@example.com", claims["sub"])
	assert.Equal(t, server.URL, claims["aud"])
	assert.InDelta(t, float64(fixed.Add(jwtAssertionTTL).Unix()), claims["exp"], 1)
	assert.Equal(t, "https://na1.salesforce.com", tok.InstanceURL)
}

func TestAuthenticator_JWTToken_Errors(t *testing.T) {
	t.Run("rejected assertion", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"user hasn't approved this consumer"}`}
		a, _ := newTestAuthenticator(t, mock, "consumer-key", "")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		_, err = a.JWTToken(context.Background(), "user", key)

		var authErr *pkgerrs.AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
		assert.Equal(t, "invalid_grant", authErr.ErrorCode)
		assert.Equal(t, "user hasn't approved this consumer", authErr.Description)
	})

	t.Run("missing key", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: successTokenBody}
		a, _ := newTestAuthenticator(t, mock, "consumer-key", "")

		_, err := a.JWTToken(context.Background(), "user", nil)

		var cfgErr *pkgerrs.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "PrivateKey", cfgErr.Field)
		assert.Equal(t, int32(0), mock.requests.Load())
	})

	t.Run("empty access token", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: `{"instance_url":"https://na1.salesforce.com"}`}
		a, _ := newTestAuthenticator(t, mock, "consumer-key", "")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		_, err = a.JWTToken(context.Background(), "user", key)

		var authErr *pkgerrs.AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, http.StatusOK, authErr.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		mock := &mockTokenServer{t: t, statusCode: http.StatusOK, body: `{not json`}
		a, _ := newTestAuthenticator(t, mock, "consumer-key", "")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		_, err = a.JWTToken(context.Background(), "user", key)

		var parseErr *pkgerrs.ParseError
		require.True(t, errors.As(err, &parseErr), "expected ParseError, got %T", err)
	})
}

func TestAuthenticator_SetLoginURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "production", input: "https://login.salesforce.com", want: "https://login.salesforce.com"},
		{name: "trailing slash", input: "https://test.salesforce.com/", want: "https://test.salesforce.com"},
		{name: "my domain", input: "https://acme.my.salesforce.com", want: "https://acme.my.salesforce.com"},
		{name: "relative", input: "login.salesforce.com", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Authenticator{}
			err := a.SetLoginURL(tt.input)
			if tt.wantErr {
				var cfgErr *pkgerrs.ConfigError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "LoginURL", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.LoginURL())
			assert.Equal(t, tt.want+"/services/oauth2/token", a.TokenURL())
		})
	}
}

func TestAuthenticator_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	a, err := NewAuthenticator(&http.Client{Timeout: time.Second}, "id", "secret", serverURL, "sf-test/1.0", nil)
	require.NoError(t, err)

	_, err = a.PasswordToken(context.Background(), "user", "pass")

	var authErr *pkgerrs.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, authErr.StatusCode)
	assert.NotNil(t, authErr.Err)
}

func TestUserAgentTransport(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.UserAgent()
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	defer server.Close()

	client := &http.Client{Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: "custom/2.0"}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "custom/2.0", <-got)
}
