package force

import (
	"context"
	"net/http"

	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// Versions lists the API versions available on the instance.
func (c *Client) Versions(ctx context.Context) ([]types.VersionResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "/services/data/", nil)
	if err != nil {
		return nil, wrap("versions", err)
	}

	var versions []types.VersionResponse
	if _, err := c.client.Do(req, &versions); err != nil {
		return nil, wrap("versions", err)
	}
	return versions, nil
}

// DescribeGlobal lists the sobjects available to the current user.
func (c *Client) DescribeGlobal(ctx context.Context) (*types.DescribeGlobalResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "sobjects/", nil)
	if err != nil {
		return nil, wrap("describe global", err)
	}

	var result types.DescribeGlobalResponse
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, wrap("describe global", err)
	}
	return &result, nil
}

// Describe returns the metadata of a single sobject.
func (c *Client) Describe(ctx context.Context, sobject string) (*types.DescribeResponse, error) {
	if err := c.validator.ValidateSObjectName(sobject); err != nil {
		return nil, wrap("describe", err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "sobjects/"+sobject+"/describe", nil)
	if err != nil {
		return nil, wrap("describe", err)
	}

	var result types.DescribeResponse
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, wrap("describe", err)
	}
	return &result, nil
}

// Limits returns the org's current limits, keyed by name.
func (c *Client) Limits(ctx context.Context) (types.Limits, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "limits", nil)
	if err != nil {
		return nil, wrap("limits", err)
	}

	var result types.Limits
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, wrap("limits", err)
	}
	return result, nil
}
