package force

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// Query runs a SOQL query and decodes the first page of results into out,
// usually a *types.QueryResponse[T]. Use QueryMore or a QueryIterator for
// further pages.
func (c *Client) Query(ctx context.Context, soql string, out any) error {
	return wrap("query", c.query(ctx, "query/", soql, out))
}

// QueryAll is like Query but includes deleted and archived records.
func (c *Client) QueryAll(ctx context.Context, soql string, out any) error {
	return wrap("query all", c.query(ctx, "queryAll/", soql, out))
}

func (c *Client) query(ctx context.Context, resource, soql string, out any) error {
	if err := c.validator.ValidateQuery("soql", soql); err != nil {
		return err
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, resource+"?"+url.Values{"q": {soql}}.Encode(), nil)
	if err != nil {
		return err
	}
	_, err = c.client.Do(req, out)
	return err
}

// QueryMore fetches the page at nextRecordsURL, as returned in
// QueryResponse.NextRecordsURL, and decodes it into out.
func (c *Client) QueryMore(ctx context.Context, nextRecordsURL string, out any) error {
	if !strings.HasPrefix(nextRecordsURL, "/services/data/") {
		return wrap("query more", &pkgerrs.ConfigError{
			Field:   "nextRecordsURL",
			Message: "must be a /services/data/ path as returned by a query",
		})
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, nextRecordsURL, nil)
	if err != nil {
		return wrap("query more", err)
	}
	_, err = c.client.Do(req, out)
	return wrap("query more", err)
}

// Search runs a SOSL search.
func (c *Client) Search(ctx context.Context, sosl string) (*types.SearchResponse, error) {
	if err := c.validator.ValidateQuery("sosl", sosl); err != nil {
		return nil, wrap("search", err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "search/?"+url.Values{"q": {sosl}}.Encode(), nil)
	if err != nil {
		return nil, wrap("search", err)
	}

	var result types.SearchResponse
	if _, err := c.client.Do(req, &result); err != nil {
		return nil, wrap("search", err)
	}
	return &result, nil
}
