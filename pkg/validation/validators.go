// Package validation provides helpers for checking Salesforce identifiers
// before they are placed into request paths.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Regular expressions for validating Salesforce data formats
var (
	// idRegex matches 15 or 18 character record IDs
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9]{15}([a-zA-Z0-9]{3})?$`)

	// apiNameRegex matches sobject and field API names such as Account,
	// Invoice__c or ns__Invoice__c
	apiNameRegex = regexp.MustCompile(`^[a-zA-Z](?:[a-zA-Z0-9_]{0,78}[a-zA-Z0-9])?$`)

	// versionRegex matches REST API versions such as v44.0
	versionRegex = regexp.MustCompile(`^v[1-9][0-9]{1,2}\.[0-9]$`)

	// bareVersionRegex matches a version without its "v" prefix, with or without the minor part
	bareVersionRegex = regexp.MustCompile(`^v?([1-9][0-9]{1,2})(?:\.([0-9]))?$`)
)

const checksumAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"

// IsValidID checks if a string is a valid 15 or 18 character record ID.
// For 18 character IDs the case-safe suffix must match the checksum.
func IsValidID(id string) bool {
	if !idRegex.MatchString(id) {
		return false
	}
	if len(id) == 18 {
		return idChecksum(id[:15]) == id[15:]
	}
	return true
}

// To18 converts a 15 character case-sensitive ID into its 18 character case-safe form.
// 18 character IDs are returned unchanged after their checksum is verified.
func To18(id string) (string, error) {
	switch len(id) {
	case 15:
		if !idRegex.MatchString(id) {
			return "", fmt.Errorf("invalid record ID %q", id)
		}
		return id + idChecksum(id), nil
	case 18:
		if !IsValidID(id) {
			return "", fmt.Errorf("invalid record ID %q", id)
		}
		return id, nil
	default:
		return "", fmt.Errorf("record ID must be 15 or 18 characters, got %d", len(id))
	}
}

// idChecksum computes the three character suffix for a 15 character ID.
// Each suffix character encodes which of five consecutive characters are uppercase.
func idChecksum(id string) string {
	var sb strings.Builder
	for chunk := 0; chunk < 3; chunk++ {
		flags := 0
		for i := 0; i < 5; i++ {
			c := id[chunk*5+i]
			if c >= 'A' && c <= 'Z' {
				flags |= 1 << i
			}
		}
		sb.WriteByte(checksumAlphabet[flags])
	}
	return sb.String()
}

// KeyPrefix returns the three character object key prefix of an ID, e.g. "001" for Accounts.
func KeyPrefix(id string) string {
	if len(id) < 3 {
		return ""
	}
	return id[:3]
}

// IsValidAPIName checks if a string is a valid sobject or field API name.
func IsValidAPIName(name string) bool {
	return apiNameRegex.MatchString(name) && !strings.Contains(name, "___")
}

// IsValidAPIVersion checks if a string is a REST API version like "v44.0".
func IsValidAPIVersion(v string) bool {
	return versionRegex.MatchString(v)
}

// NormalizeAPIVersion turns "44", "44.0" or "v44" into "v44.0".
func NormalizeAPIVersion(v string) (string, error) {
	m := bareVersionRegex.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return "", fmt.Errorf("invalid API version %q", v)
	}
	minor := m[2]
	if minor == "" {
		minor = "0"
	}
	return "v" + m[1] + "." + minor, nil
}

// SOAPVersion returns the version string used in SOAP endpoint paths ("v44.0" -> "44.0").
func SOAPVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}
