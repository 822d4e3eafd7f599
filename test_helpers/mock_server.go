package test_helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a configurable mock of a Salesforce instance. Responses are
// registered per method and path; every request is recorded.
type MockServer struct {
	server *httptest.Server

	mu          sync.Mutex
	responses   map[string][]*MockResponse
	defaultResp *MockResponse
	requestLog  []RequestEntry
	callCount   map[string]int
}

// RequestEntry logs incoming requests for assertions
type RequestEntry struct {
	Method       string
	Path         string
	RawQuery     string
	Headers      http.Header
	Body         string
	Timestamp    time.Time
	ResponseCode int
}

// MockResponse defines a mock API response
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
}

// NewMockServer creates a new mock server instance. Unknown routes answer
// with Salesforce's NOT_FOUND error.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string][]*MockResponse),
		callCount: make(map[string]int),
		defaultResp: JSONResponse(http.StatusNotFound, []map[string]string{{
			"errorCode": "NOT_FOUND",
			"message":   "The requested resource does not exist",
		}}),
	}
	ms.server = httptest.NewServer(ms)
	return ms
}

// JSONResponse builds a response whose body is v encoded as JSON.
func JSONResponse(status int, v any) *MockResponse {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("test_helpers: cannot encode mock body: %v", err))
	}
	return &MockResponse{
		Status:  status,
		Body:    string(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func route(method, path string) string {
	return method + " " + path
}

// URL returns the base URL of the mock server
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Client returns an HTTP client that talks to the mock server.
func (ms *MockServer) Client() *http.Client {
	return ms.server.Client()
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse configures the response for method and path.
func (ms *MockServer) SetResponse(method, path string, response *MockResponse) {
	ms.SetResponses(method, path, response)
}

// SetResponses configures a sequence of responses for method and path.
// The n-th call gets the n-th response; the last one repeats.
func (ms *MockServer) SetResponses(method, path string, responses ...*MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[route(method, path)] = responses
}

// SetDefaultResponse configures the response for unregistered routes.
func (ms *MockServer) SetDefaultResponse(response *MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.defaultResp = response
}

// GetRequestLog returns the request log
func (ms *MockServer) GetRequestLog() []RequestEntry {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RequestEntry{}, ms.requestLog...)
}

// GetCallCount returns the number of requests made to method and path.
func (ms *MockServer) GetCallCount(method, path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.callCount[route(method, path)]
}

// TotalRequests returns the number of requests received on any route.
func (ms *MockServer) TotalRequests() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requestLog)
}

// ClearLog clears the request log and call counts
func (ms *MockServer) ClearLog() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.requestLog = ms.requestLog[:0]
	ms.callCount = make(map[string]int)
}

// GetLastRequest returns the last request made to method and path.
func (ms *MockServer) GetLastRequest(method, path string) (*RequestEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := len(ms.requestLog) - 1; i >= 0; i-- {
		entry := ms.requestLog[i]
		if entry.Method == method && entry.Path == path {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("no requests found for %s", route(method, path))
}

// WaitForRequests waits until at least count requests have been received.
func (ms *MockServer) WaitForRequests(count int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ms.TotalRequests() >= count {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d requests", count)
		case <-ticker.C:
		}
	}
}

// ServeHTTP implements http.Handler
func (ms *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := route(r.Method, r.URL.Path)

	ms.mu.Lock()
	ms.callCount[key]++
	response := ms.defaultResp
	if seq := ms.responses[key]; len(seq) > 0 {
		idx := ms.callCount[key] - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		response = seq[idx]
	}
	ms.requestLog = append(ms.requestLog, RequestEntry{
		Method:       r.Method,
		Path:         r.URL.Path,
		RawQuery:     r.URL.RawQuery,
		Headers:      r.Header.Clone(),
		Body:         string(body),
		Timestamp:    time.Now(),
		ResponseCode: response.Status,
	})
	ms.mu.Unlock()

	if response.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(response.Delay):
		}
	}

	for k, v := range response.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(response.Status)
	_, _ = io.WriteString(w, response.Body)
}

// SalesforceMockServer is a MockServer with the login endpoints and the
// versions resource already registered.
type SalesforceMockServer struct {
	*MockServer
	APIVersion  string
	AccessToken string
}

// NewSalesforceMockServer creates a mock instance serving apiVersion, e.g. "v44.0".
func NewSalesforceMockServer(apiVersion string) *SalesforceMockServer {
	sms := &SalesforceMockServer{
		MockServer:  NewMockServer(),
		APIVersion:  apiVersion,
		AccessToken: "00D000000000001!mock-session",
	}
	sms.setupDefaultResponses()
	return sms
}

func (sms *SalesforceMockServer) setupDefaultResponses() {
	sms.SetResponse(http.MethodPost, "/services/oauth2/token", JSONResponse(http.StatusOK, map[string]string{
		"access_token": sms.AccessToken,
		"instance_url": sms.URL(),
		"id":           sms.URL() + "/id/00D000000000001/005000000000001",
		"token_type":   "Bearer",
		"issued_at":    "1700000000000",
		"signature":    "mock-signature",
	}))

	soapVersion := strings.TrimPrefix(sms.APIVersion, "v")
	sms.SetResponse(http.MethodPost, sms.SOAPPath(), &MockResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/xml; charset=utf-8"},
		Body: `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns="urn:partner.soap.sforce.com">
  <soapenv:Body>
    <loginResponse>
      <result>
        <serverUrl>` + sms.URL() + `/services/Soap/u/` + soapVersion + `/00D000000000001</serverUrl>
        <sessionId>` + sms.AccessToken + `</sessionId>
        <userId>005000000000001AAA</userId>
        <userInfo><organizationId>00D000000000001AAA</organizationId></userInfo>
      </result>
    </loginResponse>
  </soapenv:Body>
</soapenv:Envelope>`,
	})

	sms.SetResponse(http.MethodGet, "/services/data/", JSONResponse(http.StatusOK, []map[string]string{
		{"label": "Winter '19", "url": "/services/data/v44.0", "version": "44.0"},
		{"label": "Spring '19", "url": "/services/data/v45.0", "version": "45.0"},
	}))
}

// SOAPPath returns the partner SOAP endpoint path for the server's API version.
func (sms *SalesforceMockServer) SOAPPath() string {
	return "/services/Soap/u/" + strings.TrimPrefix(sms.APIVersion, "v")
}

// DataPath returns the versioned REST path of resource, e.g. DataPath("sobjects/Account").
func (sms *SalesforceMockServer) DataPath(resource string) string {
	return "/services/data/" + sms.APIVersion + "/" + resource
}

// SetupData registers a JSON response for a versioned REST resource.
func (sms *SalesforceMockServer) SetupData(method, resource string, status int, v any) {
	sms.SetResponse(method, sms.DataPath(resource), JSONResponse(status, v))
}

// SetupNoContent registers an empty 204 response for a versioned REST resource.
func (sms *SalesforceMockServer) SetupNoContent(method, resource string) {
	sms.SetResponse(method, sms.DataPath(resource), &MockResponse{Status: http.StatusNoContent})
}

// SetupError registers a Salesforce error list response for a versioned REST resource.
func (sms *SalesforceMockServer) SetupError(method, resource string, status int, errorCode, message string) {
	sms.SetupData(method, resource, status, []map[string]string{{
		"errorCode": errorCode,
		"message":   message,
	}})
}

// SetupTokenError makes the token endpoint reject every grant.
func (sms *SalesforceMockServer) SetupTokenError(status int, errorCode, description string) {
	sms.SetResponse(http.MethodPost, "/services/oauth2/token", JSONResponse(status, map[string]string{
		"error":             errorCode,
		"error_description": description,
	}))
}
