package force

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
	"github.com/jamesprial/go-salesforce-api-wrapper/test_helpers"
)

const nextRecordsPath = "/services/data/v44.0/query/01gD0000002HU6KIAW-2000"

func TestQuery(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "query/", http.StatusOK, map[string]any{
		"totalSize":      3,
		"done":           false,
		"nextRecordsUrl": nextRecordsPath,
		"records": []map[string]any{
			{"attributes": map[string]string{"type": "Account"}, "Id": "001D000000INjVeIAL", "Name": "Acme"},
			{"attributes": map[string]string{"type": "Account"}, "Id": "001D000000INjVfIAL", "Name": "Globex"},
		},
	})

	var result types.QueryResponse[testAccount]
	require.NoError(t, client.Query(context.Background(), "SELECT Id, Name FROM Account", &result))

	assert.Equal(t, 3, result.TotalSize)
	assert.False(t, result.Done)
	assert.Equal(t, nextRecordsPath, result.NextRecordsURL)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Acme", result.Records[0].Name)
	assert.Equal(t, "Account", result.Records[1].Attributes.Type)

	entry := lastRequest(t, server, http.MethodGet, "query/")
	assert.Equal(t, "q=SELECT+Id%2C+Name+FROM+Account", entry.RawQuery)
}

func TestQueryAll(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "queryAll/", http.StatusOK, map[string]any{
		"totalSize": 1,
		"done":      true,
		"records":   []map[string]any{{"Id": "001D000000INjVeIAL", "IsDeleted": true}},
	})

	var result types.QueryResponse[map[string]any]
	require.NoError(t, client.QueryAll(context.Background(), "SELECT Id, IsDeleted FROM Account", &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, true, result.Records[0]["IsDeleted"])

	entry := lastRequest(t, server, http.MethodGet, "queryAll/")
	assert.Equal(t, "q=SELECT+Id%2C+IsDeleted+FROM+Account", entry.RawQuery)
}

func TestQueryMalformed(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupError(http.MethodGet, "query/", http.StatusBadRequest, "MALFORMED_QUERY", "unexpected token: FORM")

	var result types.QueryResponse[testAccount]
	err := client.Query(context.Background(), "SELECT Id FORM Account", &result)
	require.Error(t, err)

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, "query", clientErr.Op)

	var apiErr *pkgerrs.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.HasCode("MALFORMED_QUERY"))
}

func TestQueryBlank(t *testing.T) {
	client, server := newLoggedInClient(t)

	var result types.QueryResponse[testAccount]
	err := client.Query(context.Background(), "   ", &result)

	var cfgErr *pkgerrs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "soql", cfgErr.Field)
	assert.Equal(t, 0, server.TotalRequests())
}

func TestQueryMore(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetResponse(http.MethodGet, nextRecordsPath, test_helpers.JSONResponse(http.StatusOK, map[string]any{
		"totalSize": 3,
		"done":      true,
		"records":   []map[string]any{{"Id": "001D000000INjVgIAL", "Name": "Initech"}},
	}))

	var result types.QueryResponse[testAccount]
	require.NoError(t, client.QueryMore(context.Background(), nextRecordsPath, &result))
	assert.True(t, result.Done)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Initech", result.Records[0].Name)
}

func TestQueryMoreRejectsForeignURL(t *testing.T) {
	client, server := newLoggedInClient(t)

	tests := []string{
		"",
		"https://evil.example.com/services/data/v44.0/query/01g",
		"query/01gD0000002HU6KIAW-2000",
	}
	for _, next := range tests {
		var result types.QueryResponse[testAccount]
		err := client.QueryMore(context.Background(), next, &result)

		var cfgErr *pkgerrs.ConfigError
		require.True(t, errors.As(err, &cfgErr), "nextRecordsURL %q", next)
		assert.Equal(t, "nextRecordsURL", cfgErr.Field)
	}
	assert.Equal(t, 0, server.TotalRequests())
}

func TestSearch(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "search/", http.StatusOK, map[string]any{
		"searchRecords": []map[string]any{
			{"attributes": map[string]string{"type": "Account", "url": "/services/data/v44.0/sobjects/Account/001D000000INjVeIAL"}, "Id": "001D000000INjVeIAL", "Name": "Acme"},
			{"attributes": map[string]string{"type": "Contact"}, "Id": "003D000000QV9n2IAD", "LastName": "Smith"},
		},
	})

	sosl := "FIND {Acme} IN ALL FIELDS RETURNING Account(Id, Name), Contact(Id, LastName)"
	result, err := client.Search(context.Background(), sosl)
	require.NoError(t, err)
	require.Len(t, result.SearchRecords, 2)

	first := result.SearchRecords[0]
	assert.Equal(t, "Account", first.Type())
	assert.Equal(t, "001D000000INjVeIAL", first.ID())

	var account testAccount
	require.NoError(t, first.Decode(&account))
	assert.Equal(t, "Acme", account.Name)
	assert.Equal(t, "Account", account.Attributes.Type)

	assert.Equal(t, "Contact", result.SearchRecords[1].Type())

	entry := lastRequest(t, server, http.MethodGet, "search/")
	assert.Contains(t, entry.RawQuery, "q=FIND+%7BAcme%7D+IN+ALL+FIELDS")
}
