package force

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
	"github.com/jamesprial/go-salesforce-api-wrapper/test_helpers"
)

const testJobID = "7505e000001BtqUAAS"

func jobInfo(state types.JobState) map[string]any {
	return map[string]any{
		"id":                     testJobID,
		"object":                 "Account",
		"operation":              "insert",
		"state":                  string(state),
		"contentType":            "CSV",
		"apiVersion":             44.0,
		"lineEnding":             "LF",
		"columnDelimiter":        "COMMA",
		"numberRecordsProcessed": 2,
	}
}

func fastWait() *WaitOptions {
	return &WaitOptions{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}
}

func TestCreateIngestJob(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodPost, "jobs/ingest/", http.StatusOK, jobInfo(types.JobStateOpen))

	job, err := client.CreateIngestJob(context.Background(), &types.IngestJobRequest{
		Object:    "Account",
		Operation: types.OperationInsert,
	})
	require.NoError(t, err)
	assert.Equal(t, testJobID, job.ID)
	assert.Equal(t, types.JobStateOpen, job.State)
	assert.Equal(t, 44.0, job.APIVersion)

	entry := lastRequest(t, server, http.MethodPost, "jobs/ingest/")
	assert.JSONEq(t, `{
		"object": "Account",
		"operation": "insert",
		"contentType": "CSV",
		"lineEnding": "LF",
		"columnDelimiter": "COMMA"
	}`, entry.Body)
}

func TestCreateIngestJobKeepsOptions(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodPost, "jobs/ingest/", http.StatusOK, jobInfo(types.JobStateOpen))

	req := &types.IngestJobRequest{
		Object:              "Account",
		Operation:           types.OperationUpsert,
		ExternalIDFieldName: "External_Id__c",
		LineEnding:          "CRLF",
		ColumnDelimiter:     "PIPE",
	}
	_, err := client.CreateIngestJob(context.Background(), req)
	require.NoError(t, err)

	entry := lastRequest(t, server, http.MethodPost, "jobs/ingest/")
	assert.Contains(t, entry.Body, `"externalIdFieldName":"External_Id__c"`)
	assert.Contains(t, entry.Body, `"lineEnding":"CRLF"`)
	assert.Contains(t, entry.Body, `"columnDelimiter":"PIPE"`)
	assert.Empty(t, req.ContentType, "caller's request must not be modified")
}

func TestCreateIngestJobValidation(t *testing.T) {
	tests := []struct {
		name      string
		request   *types.IngestJobRequest
		wantField string
	}{
		{name: "nil request", request: nil, wantField: "request"},
		{name: "missing object", request: &types.IngestJobRequest{Operation: types.OperationInsert}, wantField: "Object"},
		{name: "bad object", request: &types.IngestJobRequest{Object: "Account Name", Operation: types.OperationInsert}, wantField: "sobject"},
		{name: "unknown operation", request: &types.IngestJobRequest{Object: "Account", Operation: "merge"}, wantField: "Operation"},
		{name: "upsert without external id", request: &types.IngestJobRequest{Object: "Account", Operation: types.OperationUpsert}, wantField: "ExternalIDFieldName"},
		{name: "bad delimiter", request: &types.IngestJobRequest{Object: "Account", Operation: types.OperationInsert, ColumnDelimiter: ";"}, wantField: "ColumnDelimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newLoggedInClient(t)

			job, err := client.CreateIngestJob(context.Background(), tt.request)
			require.Error(t, err)
			assert.Nil(t, job)

			var cfgErr *pkgerrs.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, 0, server.TotalRequests())
		})
	}
}

func TestUploadJobRecords(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetResponse(http.MethodPut, server.DataPath("jobs/ingest/"+testJobID+"/batches"), &test_helpers.MockResponse{Status: http.StatusCreated})

	err := client.UploadJobRecords(context.Background(), testJobID, []string{"Name", "Description"}, []map[string]string{
		{"Name": "Acme", "Description": "Widgets, gadgets"},
		{"Name": "Globex"},
	})
	require.NoError(t, err)

	entry := lastRequest(t, server, http.MethodPut, "jobs/ingest/"+testJobID+"/batches")
	assert.Equal(t, "text/csv", entry.Headers.Get("Content-Type"))
	assert.Equal(t, "Name,Description\nAcme,\"Widgets, gadgets\"\nGlobex,\n", entry.Body)
}

func TestUploadJobDataValidation(t *testing.T) {
	client, server := newLoggedInClient(t)

	err := client.UploadJobData(context.Background(), "750/../x", strings.NewReader("Name\nAcme\n"))
	var cfgErr *pkgerrs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "jobID", cfgErr.Field)

	err = client.UploadJobData(context.Background(), testJobID, nil)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "data", cfgErr.Field)

	err = client.UploadJobRecords(context.Background(), testJobID, nil, nil)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "records", cfgErr.Field)

	assert.Equal(t, 0, server.TotalRequests())
}

func TestJobStateChanges(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) (*types.IngestJobInfo, error)
		wantState types.JobState
	}{
		{
			name:      "close",
			call:      func(c *Client) (*types.IngestJobInfo, error) { return c.CloseIngestJob(context.Background(), testJobID) },
			wantState: types.JobStateUploadComplete,
		},
		{
			name:      "abort",
			call:      func(c *Client) (*types.IngestJobInfo, error) { return c.AbortIngestJob(context.Background(), testJobID) },
			wantState: types.JobStateAborted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newLoggedInClient(t)
			server.SetupData(http.MethodPatch, "jobs/ingest/"+testJobID, http.StatusOK, jobInfo(tt.wantState))

			job, err := tt.call(client)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, job.State)

			entry := lastRequest(t, server, http.MethodPatch, "jobs/ingest/"+testJobID)
			assert.JSONEq(t, `{"state":"`+string(tt.wantState)+`"}`, entry.Body)
		})
	}
}

func TestGetAndDeleteIngestJob(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "jobs/ingest/"+testJobID, http.StatusOK, jobInfo(types.JobStateInProgress))
	server.SetupNoContent(http.MethodDelete, "jobs/ingest/"+testJobID)

	job, err := client.GetIngestJob(context.Background(), testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateInProgress, job.State)
	assert.Equal(t, 2, job.NumberRecordsProcessed)

	require.NoError(t, client.DeleteIngestJob(context.Background(), testJobID))
	assert.Equal(t, 1, server.GetCallCount(http.MethodDelete, server.DataPath("jobs/ingest/"+testJobID)))
}

func TestListIngestJobs(t *testing.T) {
	client, server := newLoggedInClient(t)

	first := jobInfo(types.JobStateJobComplete)
	second := jobInfo(types.JobStateOpen)
	second["id"] = "7505e000001BtqVAAS"

	server.SetResponses(http.MethodGet, server.DataPath("jobs/ingest/"),
		test_helpers.JSONResponse(http.StatusOK, map[string]any{
			"done":           false,
			"nextRecordsUrl": "/services/data/v44.0/jobs/ingest/?queryLocator=01gxx0000000001-1",
			"records":        []any{first},
		}),
		test_helpers.JSONResponse(http.StatusOK, map[string]any{
			"done":    true,
			"records": []any{second},
		}),
	)

	jobs, err := client.ListIngestJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, testJobID, jobs[0].ID)
	assert.Equal(t, "7505e000001BtqVAAS", jobs[1].ID)

	entry := lastRequest(t, server, http.MethodGet, "jobs/ingest/")
	assert.Equal(t, "queryLocator=01gxx0000000001-1", entry.RawQuery)
	assert.Equal(t, 2, server.TotalRequests())
}

func TestJobResults(t *testing.T) {
	const csvBody = "\"sf__Id\",\"sf__Created\",Name\n001D000000INjVeIAL,true,Acme\n001D000000INjVfIAL,true,\"Globex, Inc\"\n"

	client, server := newLoggedInClient(t)
	server.SetResponse(http.MethodGet, server.DataPath("jobs/ingest/"+testJobID+"/successfulResults/"), &test_helpers.MockResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/csv"},
		Body:    csvBody,
	})
	server.SetResponse(http.MethodGet, server.DataPath("jobs/ingest/"+testJobID+"/failedResults/"), &test_helpers.MockResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/csv"},
		Body:    "\"sf__Id\",\"sf__Error\",Name\n\"\",\"REQUIRED_FIELD_MISSING:Required fields are missing: [Name]:Name --\",\n",
	})
	server.SetResponse(http.MethodGet, server.DataPath("jobs/ingest/"+testJobID+"/unprocessedrecords/"), &test_helpers.MockResponse{
		Status: http.StatusOK,
	})

	ok, err := client.GetJobSuccessfulResults(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, ok, 2)
	assert.Equal(t, "001D000000INjVeIAL", ok[0]["sf__Id"])
	assert.Equal(t, "true", ok[0]["sf__Created"])
	assert.Equal(t, "Globex, Inc", ok[1]["Name"])

	entry := lastRequest(t, server, http.MethodGet, "jobs/ingest/"+testJobID+"/successfulResults/")
	assert.Equal(t, "text/csv", entry.Headers.Get("Accept"))

	failed, err := client.GetJobFailedResults(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.True(t, strings.HasPrefix(failed[0]["sf__Error"], "REQUIRED_FIELD_MISSING"))
	assert.Equal(t, "", failed[0]["Name"])

	unprocessed, err := client.GetJobUnprocessedRecords(context.Background(), testJobID)
	require.NoError(t, err)
	assert.NotNil(t, unprocessed)
	assert.Empty(t, unprocessed)
}

func TestJobResultsMalformedCSV(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetResponse(http.MethodGet, server.DataPath("jobs/ingest/"+testJobID+"/successfulResults/"), &test_helpers.MockResponse{
		Status: http.StatusOK,
		Body:   "sf__Id,Name\n001D000000INjVeIAL,Acme,extra\n",
	})

	_, err := client.GetJobSuccessfulResults(context.Background(), testJobID)
	require.Error(t, err)

	var parseErr *pkgerrs.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestWaitForIngestJob(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetResponses(http.MethodGet, server.DataPath("jobs/ingest/"+testJobID),
		test_helpers.JSONResponse(http.StatusOK, jobInfo(types.JobStateUploadComplete)),
		test_helpers.JSONResponse(http.StatusOK, jobInfo(types.JobStateInProgress)),
		test_helpers.JSONResponse(http.StatusOK, jobInfo(types.JobStateJobComplete)),
	)

	var polls atomic.Int32
	opts := fastWait()
	opts.OnPoll = func(*types.IngestJobInfo) { polls.Add(1) }

	job, err := client.WaitForIngestJob(context.Background(), testJobID, opts)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateJobComplete, job.State)
	assert.Equal(t, int32(3), polls.Load())
}

func TestWaitForIngestJobFailedIsTerminal(t *testing.T) {
	client, server := newLoggedInClient(t)
	failed := jobInfo(types.JobStateFailed)
	failed["errorMessage"] = "InvalidBatch : Field name not found : Nme"
	server.SetupData(http.MethodGet, "jobs/ingest/"+testJobID, http.StatusOK, failed)

	job, err := client.WaitForIngestJob(context.Background(), testJobID, fastWait())
	require.NoError(t, err)
	assert.Equal(t, types.JobStateFailed, job.State)
	assert.Contains(t, job.ErrorMessage, "Field name not found")
}

func TestWaitForIngestJobStopsOnAPIError(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupError(http.MethodGet, "jobs/ingest/"+testJobID, http.StatusNotFound, "NOT_FOUND", "The requested resource does not exist")

	job, err := client.WaitForIngestJob(context.Background(), testJobID, fastWait())
	require.Error(t, err)
	assert.Nil(t, job)

	var apiErr *pkgerrs.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, 1, server.TotalRequests())
}

func TestWaitForIngestJobGivesUp(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "jobs/ingest/"+testJobID, http.StatusOK, jobInfo(types.JobStateInProgress))

	job, err := client.WaitForIngestJob(context.Background(), testJobID, &WaitOptions{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  30 * time.Millisecond,
	})
	require.Error(t, err)
	require.NotNil(t, job)
	assert.Equal(t, types.JobStateInProgress, job.State)

	var stateErr *pkgerrs.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Contains(t, stateErr.Message, "still InProgress")
	assert.True(t, errors.Is(err, errJobNotFinished))
}

func TestWaitForIngestJobContextCanceled(t *testing.T) {
	client, server := newLoggedInClient(t)
	server.SetupData(http.MethodGet, "jobs/ingest/"+testJobID, http.StatusOK, jobInfo(types.JobStateInProgress))

	ctx, cancel := context.WithCancel(context.Background())
	opts := &WaitOptions{InitialInterval: time.Hour, MaxInterval: time.Hour}
	opts.OnPoll = func(*types.IngestJobInfo) { cancel() }

	job, err := client.WaitForIngestJob(ctx, testJobID, opts)
	require.Error(t, err)
	require.NotNil(t, job)
	assert.True(t, errors.Is(err, context.Canceled))

	var stateErr *pkgerrs.StateError
	assert.True(t, errors.As(err, &stateErr))
}
