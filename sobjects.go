package force

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// FindByID retrieves a record and decodes it into out.
// When fields are given only those fields are returned.
func (c *Client) FindByID(ctx context.Context, sobject, id string, out any, fields ...string) error {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return wrap("find by id", err)
	}
	if err := c.validator.ValidateID("id", id); err != nil {
		return wrap("find by id", err)
	}
	for _, f := range fields {
		if err := c.validator.ValidateFieldName("fields", f); err != nil {
			return wrap("find by id", err)
		}
	}

	path := "sobjects/" + sobject + "/" + id
	if len(fields) > 0 {
		path += "?" + url.Values{"fields": {strings.Join(fields, ",")}}.Encode()
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return wrap("find by id", err)
	}
	_, err = c.client.Do(req, out)
	return wrap("find by id", err)
}

// Create inserts a new record. params is encoded as JSON, typically a map or a
// struct with json tags naming the fields.
func (c *Client) Create(ctx context.Context, sobject string, params any) (*types.CreateResponse, error) {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return nil, wrap("create", err)
	}

	req, err := c.client.NewJSONRequest(ctx, http.MethodPost, "sobjects/"+sobject, params)
	if err != nil {
		return nil, wrap("create", err)
	}

	var result types.CreateResponse
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, wrap("create", err)
	}
	return &result, nil
}

// Update changes fields of an existing record.
func (c *Client) Update(ctx context.Context, sobject, id string, params any) error {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return wrap("update", err)
	}
	if err := c.validator.ValidateID("id", id); err != nil {
		return wrap("update", err)
	}

	req, err := c.client.NewJSONRequest(ctx, http.MethodPatch, "sobjects/"+sobject+"/"+id, params)
	if err != nil {
		return wrap("update", err)
	}
	_, err = c.client.Do(req, nil)
	return wrap("update", err)
}

// Upsert creates or updates the record whose keyName field equals key.
// It returns the new record when one was created (HTTP 201) and nil when an
// existing record was updated.
func (c *Client) Upsert(ctx context.Context, sobject, keyName, key string, params any) (*types.CreateResponse, error) {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return nil, wrap("upsert", err)
	}
	if err := c.validator.ValidateFieldName("keyName", keyName); err != nil {
		return nil, wrap("upsert", err)
	}
	if err := c.validator.ValidatePathValue("key", key); err != nil {
		return nil, wrap("upsert", err)
	}

	path := "sobjects/" + sobject + "/" + keyName + "/" + url.PathEscape(key)
	req, err := c.client.NewJSONRequest(ctx, http.MethodPatch, path, params)
	if err != nil {
		return nil, wrap("upsert", err)
	}

	var result types.CreateResponse
	resp, err := c.client.Do(req, &result)
	if err != nil {
		return nil, wrap("upsert", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, nil
	}
	return &result, nil
}

// Destroy deletes a record.
func (c *Client) Destroy(ctx context.Context, sobject, id string) error {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return wrap("destroy", err)
	}
	if err := c.validator.ValidateID("id", id); err != nil {
		return wrap("destroy", err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodDelete, "sobjects/"+sobject+"/"+id, nil)
	if err != nil {
		return wrap("destroy", err)
	}
	_, err = c.client.Do(req, nil)
	return wrap("destroy", err)
}
