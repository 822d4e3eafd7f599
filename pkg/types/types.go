// Package types holds the wire-format records exchanged with the Salesforce APIs.
package types

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TokenResponse is the body returned by the OAuth2 token endpoint on success.
type TokenResponse struct {
	ID           string `json:"id"`
	IssuedAt     string `json:"issued_at"`
	AccessToken  string `json:"access_token"`
	InstanceURL  string `json:"instance_url"`
	Signature    string `json:"signature"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenErrorResponse is the body returned by the OAuth2 token endpoint on failure.
type TokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AccessToken is the credential attached to every authenticated request.
type AccessToken struct {
	TokenType string
	Value     string
	IssuedAt  string
}

// ErrorResponse is a single entry of the error list Salesforce returns for
// failed REST and bulk calls.
type ErrorResponse struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

func (e ErrorResponse) String() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (fields: %v)", e.ErrorCode, e.Message, e.Fields)
	}
	return e.ErrorCode + ": " + e.Message
}

// QueryResponse is one page of a SOQL query result.
// NextRecordsURL is set when Done is false.
type QueryResponse[T any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl,omitempty"`
	Records        []T    `json:"records"`
}

// CreateResponse is returned when a record is created, either directly or by upsert.
type CreateResponse struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Errors  []ErrorResponse `json:"errors,omitempty"`
	Created bool            `json:"created,omitempty"`
}

// VersionResponse describes one API version available on an instance.
type VersionResponse struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// SObjectAttributes is the "attributes" block attached to every record.
type SObjectAttributes struct {
	Type string `json:"type" mapstructure:"type"`
	URL  string `json:"url" mapstructure:"url"`
}

// SearchResponse is the result of a SOSL search.
type SearchResponse struct {
	SearchRecords []SearchRecord `json:"searchRecords"`
}

// SearchRecord is a single search hit. Hits can be of any sobject type, so the
// record is kept as a generic map until the caller decodes it.
type SearchRecord map[string]any

// Type returns the sobject type of the record, or "" when attributes are missing.
func (r SearchRecord) Type() string {
	attrs, ok := r["attributes"].(map[string]any)
	if !ok {
		return ""
	}
	t, _ := attrs["type"].(string)
	return t
}

// ID returns the record Id.
func (r SearchRecord) ID() string {
	id, _ := r["Id"].(string)
	return id
}

// Decode copies the record into v, matching keys against json struct tags.
func (r SearchRecord) Decode(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           v,
		WeaklyTypedInput: true,
		Squash:           true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(r))
}

// DescribeGlobalResponse lists the sobjects available to the current user.
type DescribeGlobalResponse struct {
	Encoding     string                  `json:"encoding"`
	MaxBatchSize int                     `json:"maxBatchSize"`
	SObjects     []DescribeGlobalSObject `json:"sobjects"`
}

// DescribeGlobalSObject is the summary of one sobject in a global describe.
type DescribeGlobalSObject struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	LabelPlural string            `json:"labelPlural"`
	KeyPrefix   string            `json:"keyPrefix"`
	Custom      bool              `json:"custom"`
	Createable  bool              `json:"createable"`
	Updateable  bool              `json:"updateable"`
	Deletable   bool              `json:"deletable"`
	Queryable   bool              `json:"queryable"`
	Searchable  bool              `json:"searchable"`
	URLs        map[string]string `json:"urls"`
}

// DescribeResponse is the full metadata of a single sobject.
type DescribeResponse struct {
	Name               string              `json:"name"`
	Label              string              `json:"label"`
	LabelPlural        string              `json:"labelPlural"`
	KeyPrefix          string              `json:"keyPrefix"`
	Custom             bool                `json:"custom"`
	Createable         bool                `json:"createable"`
	Updateable         bool                `json:"updateable"`
	Deletable          bool                `json:"deletable"`
	Queryable          bool                `json:"queryable"`
	Searchable         bool                `json:"searchable"`
	Fields             []Field             `json:"fields"`
	ChildRelationships []ChildRelationship `json:"childRelationships"`
	RecordTypeInfos    []RecordTypeInfo    `json:"recordTypeInfos"`
	URLs               map[string]string   `json:"urls"`
}

// Field returns the field with the given API name, or nil.
func (d *DescribeResponse) Field(name string) *Field {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// Field describes one field of an sobject.
type Field struct {
	Name             string          `json:"name"`
	Label            string          `json:"label"`
	Type             string          `json:"type"`
	Length           int             `json:"length"`
	Precision        int             `json:"precision"`
	Scale            int             `json:"scale"`
	Nillable         bool            `json:"nillable"`
	Createable       bool            `json:"createable"`
	Updateable       bool            `json:"updateable"`
	Unique           bool            `json:"unique"`
	ExternalID       bool            `json:"externalId"`
	IDLookup         bool            `json:"idLookup"`
	Custom           bool            `json:"custom"`
	ReferenceTo      []string        `json:"referenceTo"`
	RelationshipName string          `json:"relationshipName,omitempty"`
	PicklistValues   []PicklistValue `json:"picklistValues"`
}

// PicklistValue is one allowed value of a picklist field.
type PicklistValue struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	Active       bool   `json:"active"`
	DefaultValue bool   `json:"defaultValue"`
}

// ChildRelationship links an sobject to the sobjects that reference it.
type ChildRelationship struct {
	ChildSObject     string `json:"childSObject"`
	Field            string `json:"field"`
	RelationshipName string `json:"relationshipName"`
	CascadeDelete    bool   `json:"cascadeDelete"`
}

// RecordTypeInfo describes a record type available on an sobject.
type RecordTypeInfo struct {
	RecordTypeID string `json:"recordTypeId"`
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	Master       bool   `json:"master"`
	DefaultType  bool   `json:"defaultRecordTypeMapping"`
}

// Limit is a single org limit.
type Limit struct {
	Max       int `json:"Max"`
	Remaining int `json:"Remaining"`
}

// Limits maps limit names such as "DailyApiRequests" to their current values.
type Limits map[string]Limit

// APIUsage is parsed from the Sforce-Limit-Info response header.
type APIUsage struct {
	Used int
	Max  int
}

// SOAPLoginResult holds the fields of a SOAP login() response that the client uses.
type SOAPLoginResult struct {
	SessionID         string
	ServerURL         string
	MetadataServerURL string
	UserID            string
	OrganizationID    string
	PasswordExpired   bool
	Sandbox           bool
}
