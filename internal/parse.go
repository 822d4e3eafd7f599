package internal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// ParseAPIError builds an APIError from a non-2xx response body.
//
// REST and bulk endpoints return a JSON list of error objects; describe calls
// and some gateways return a single object. Anything else is kept verbatim as
// the message of a single entry.
func ParseAPIError(statusCode int, body []byte) *pkgerrs.APIError {
	apiErr := &pkgerrs.APIError{StatusCode: statusCode}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}

	switch trimmed[0] {
	case '[':
		var list []types.ErrorResponse
		if err := json.Unmarshal(trimmed, &list); err == nil {
			apiErr.Errors = list
			return apiErr
		}
	case '{':
		var single types.ErrorResponse
		if err := json.Unmarshal(trimmed, &single); err == nil && (single.ErrorCode != "" || single.Message != "") {
			apiErr.Errors = []types.ErrorResponse{single}
			return apiErr
		}
		// OAuth-style bodies show up when a session expires mid-flight.
		var tokenErr types.TokenErrorResponse
		if err := json.Unmarshal(trimmed, &tokenErr); err == nil && tokenErr.Error != "" {
			apiErr.Errors = []types.ErrorResponse{{ErrorCode: tokenErr.Error, Message: tokenErr.ErrorDescription}}
			return apiErr
		}
	}

	apiErr.Errors = []types.ErrorResponse{{Message: string(trimmed)}}
	return apiErr
}

// ParseTokenError decodes an OAuth2 token endpoint error body.
// It returns false when the body is not a token error.
func ParseTokenError(body []byte) (types.TokenErrorResponse, bool) {
	var tokenErr types.TokenErrorResponse
	if err := json.Unmarshal(body, &tokenErr); err != nil || tokenErr.Error == "" {
		return types.TokenErrorResponse{}, false
	}
	return tokenErr, true
}

// ParseLimitInfo parses a Sforce-Limit-Info header value such as "api-usage=25/15000".
func ParseLimitInfo(header string) (types.APIUsage, bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key != "api-usage" {
			continue
		}
		usedStr, maxStr, ok := strings.Cut(value, "/")
		if !ok {
			return types.APIUsage{}, false
		}
		used, errUsed := strconv.Atoi(strings.TrimSpace(usedStr))
		limit, errMax := strconv.Atoi(strings.TrimSpace(maxStr))
		if errUsed != nil || errMax != nil {
			return types.APIUsage{}, false
		}
		return types.APIUsage{Used: used, Max: limit}, true
	}
	return types.APIUsage{}, false
}

// substringBefore returns s up to the first occurrence of sep, or s when sep is absent.
func substringBefore(s, sep string) string {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}
