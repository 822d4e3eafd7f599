package force

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jamesprial/go-salesforce-api-wrapper/internal"
	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

const ingestJobsPath = "jobs/ingest/"

const (
	defaultPollInitialInterval = time.Second
	defaultPollMaxInterval     = 30 * time.Second
	defaultPollMaxElapsedTime  = 10 * time.Minute
)

// WaitOptions controls how WaitForIngestJob polls a job.
// Zero values use the defaults: 1s initial interval, 30s max interval, 10m overall.
type WaitOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// OnPoll, if set, is called with the job state after every poll.
	OnPoll func(*types.IngestJobInfo)
}

var errJobNotFinished = errors.New("ingest job not finished")

// CreateIngestJob opens a Bulk API 2.0 ingest job. ContentType, LineEnding and
// ColumnDelimiter default to CSV, LF and COMMA.
func (c *Client) CreateIngestJob(ctx context.Context, request *types.IngestJobRequest) (*types.IngestJobInfo, error) {
	if request == nil {
		return nil, wrap("create ingest job", &pkgerrs.ConfigError{Field: "request", Message: "request cannot be nil"})
	}

	body := *request
	if body.ContentType == "" {
		body.ContentType = "CSV"
	}
	if body.LineEnding == "" {
		body.LineEnding = "LF"
	}
	if body.ColumnDelimiter == "" {
		body.ColumnDelimiter = "COMMA"
	}
	if err := c.validator.Struct(&body); err != nil {
		return nil, wrap("create ingest job", err)
	}
	if err := c.validator.ValidateSObjectName(body.Object); err != nil {
		return nil, wrap("create ingest job", err)
	}

	req, err := c.client.NewJSONRequest(ctx, http.MethodPost, ingestJobsPath, &body)
	if err != nil {
		return nil, wrap("create ingest job", err)
	}

	var job types.IngestJobInfo
	if _, err := c.client.Do(req, &job); err != nil {
		return nil, wrap("create ingest job", err)
	}
	c.logger.Debug("ingest job created", "job_id", job.ID, "object", job.Object, "operation", job.Operation)
	return &job, nil
}

// UploadJobData uploads CSV data to an open ingest job.
func (c *Client) UploadJobData(ctx context.Context, jobID string, data io.Reader) error {
	if err := c.validator.ValidatePathValue("jobID", jobID); err != nil {
		return wrap("upload job data", err)
	}
	if data == nil {
		return wrap("upload job data", &pkgerrs.ConfigError{Field: "data", Message: "data cannot be nil"})
	}

	req, err := c.client.NewRequest(ctx, http.MethodPut, ingestJobsPath+jobID+"/batches", data)
	if err != nil {
		return wrap("upload job data", err)
	}
	req.Header.Set("Content-Type", "text/csv")

	_, err = c.client.Do(req, nil)
	return wrap("upload job data", err)
}

// UploadJobRecords encodes records as CSV with the given column order and uploads them.
func (c *Client) UploadJobRecords(ctx context.Context, jobID string, columns []string, records []map[string]string) error {
	var buf bytes.Buffer
	if err := internal.EncodeCSV(&buf, columns, records); err != nil {
		return wrap("upload job records", &pkgerrs.ConfigError{Field: "records", Message: err.Error()})
	}
	return c.UploadJobData(ctx, jobID, &buf)
}

// CloseIngestJob marks the upload complete so Salesforce starts processing the job.
func (c *Client) CloseIngestJob(ctx context.Context, jobID string) (*types.IngestJobInfo, error) {
	return c.setJobState(ctx, "close ingest job", jobID, types.JobStateUploadComplete)
}

// AbortIngestJob aborts the job.
func (c *Client) AbortIngestJob(ctx context.Context, jobID string) (*types.IngestJobInfo, error) {
	return c.setJobState(ctx, "abort ingest job", jobID, types.JobStateAborted)
}

func (c *Client) setJobState(ctx context.Context, op, jobID string, state types.JobState) (*types.IngestJobInfo, error) {
	if err := c.validator.ValidatePathValue("jobID", jobID); err != nil {
		return nil, wrap(op, err)
	}

	req, err := c.client.NewJSONRequest(ctx, http.MethodPatch, ingestJobsPath+jobID, map[string]types.JobState{"state": state})
	if err != nil {
		return nil, wrap(op, err)
	}

	var job types.IngestJobInfo
	if _, err := c.client.Do(req, &job); err != nil {
		return nil, wrap(op, err)
	}
	return &job, nil
}

// GetIngestJob returns the current state of a job.
func (c *Client) GetIngestJob(ctx context.Context, jobID string) (*types.IngestJobInfo, error) {
	if err := c.validator.ValidatePathValue("jobID", jobID); err != nil {
		return nil, wrap("get ingest job", err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, ingestJobsPath+jobID, nil)
	if err != nil {
		return nil, wrap("get ingest job", err)
	}

	var job types.IngestJobInfo
	if _, err := c.client.Do(req, &job); err != nil {
		return nil, wrap("get ingest job", err)
	}
	return &job, nil
}

// DeleteIngestJob deletes a closed job and its data.
func (c *Client) DeleteIngestJob(ctx context.Context, jobID string) error {
	if err := c.validator.ValidatePathValue("jobID", jobID); err != nil {
		return wrap("delete ingest job", err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodDelete, ingestJobsPath+jobID, nil)
	if err != nil {
		return wrap("delete ingest job", err)
	}
	_, err = c.client.Do(req, nil)
	return wrap("delete ingest job", err)
}

// ListIngestJobs returns every ingest job visible to the user, following
// nextRecordsUrl across pages.
func (c *Client) ListIngestJobs(ctx context.Context) ([]types.IngestJobInfo, error) {
	pager := internal.NewPager[types.IngestJobInfo](ctx, func(ctx context.Context, next string) ([]types.IngestJobInfo, string, bool, error) {
		path := ingestJobsPath
		if next != "" {
			path = next
		}

		req, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, "", false, err
		}

		var page types.IngestJobList
		if _, err := c.client.Do(req, &page); err != nil {
			return nil, "", false, err
		}
		return page.Records, page.NextRecordsURL, page.Done, nil
	})

	jobs, err := pager.Collect()
	if err != nil {
		return nil, wrap("list ingest jobs", err)
	}
	return jobs, nil
}

// GetJobSuccessfulResults returns the processed records of a completed job,
// including the sf__Id and sf__Created columns.
func (c *Client) GetJobSuccessfulResults(ctx context.Context, jobID string) ([]map[string]string, error) {
	return c.jobResults(ctx, "get successful results", jobID, "successfulResults/")
}

// GetJobFailedResults returns the rejected records of a job with their sf__Error column.
func (c *Client) GetJobFailedResults(ctx context.Context, jobID string) ([]map[string]string, error) {
	return c.jobResults(ctx, "get failed results", jobID, "failedResults/")
}

// GetJobUnprocessedRecords returns the records that were not processed,
// e.g. because the job was aborted.
func (c *Client) GetJobUnprocessedRecords(ctx context.Context, jobID string) ([]map[string]string, error) {
	return c.jobResults(ctx, "get unprocessed records", jobID, "unprocessedrecords/")
}

func (c *Client) jobResults(ctx context.Context, op, jobID, resource string) ([]map[string]string, error) {
	if err := c.validator.ValidatePathValue("jobID", jobID); err != nil {
		return nil, wrap(op, err)
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, ingestJobsPath+jobID+"/"+resource, nil)
	if err != nil {
		return nil, wrap(op, err)
	}
	req.Header.Set("Accept", "text/csv")

	body, _, err := c.client.DoRaw(req)
	if err != nil {
		return nil, wrap(op, err)
	}

	records, err := internal.DecodeCSV(body)
	if err != nil {
		return nil, wrap(op, &pkgerrs.ParseError{Operation: op, Message: "failed to decode CSV results", Err: err})
	}
	return records, nil
}

// WaitForIngestJob polls a job with exponential backoff until it reaches
// JobComplete, Failed or Aborted and returns its final state. API errors stop
// polling immediately. If the job is still running when ctx is done or
// MaxElapsedTime passes, a StateError is returned with the last known state.
func (c *Client) WaitForIngestJob(ctx context.Context, jobID string, opts *WaitOptions) (*types.IngestJobInfo, error) {
	if opts == nil {
		opts = &WaitOptions{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = durationOr(opts.InitialInterval, defaultPollInitialInterval)
	b.MaxInterval = durationOr(opts.MaxInterval, defaultPollMaxInterval)
	b.MaxElapsedTime = durationOr(opts.MaxElapsedTime, defaultPollMaxElapsedTime)

	var last *types.IngestJobInfo
	poll := func() error {
		job, err := c.GetIngestJob(ctx, jobID)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = job
		if opts.OnPoll != nil {
			opts.OnPoll(job)
		}
		if !job.State.Terminal() {
			return errJobNotFinished
		}
		return nil
	}

	notify := func(_ error, next time.Duration) {
		c.logger.Debug("ingest job still running", "job_id", jobID, "state", last.State, "next_poll", next)
	}

	err := backoff.RetryNotify(poll, backoff.WithContext(b, ctx), notify)
	if err == nil {
		return last, nil
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return nil, err
	}

	state := types.JobState("unknown")
	if last != nil {
		state = last.State
	}
	return last, wrap("wait for ingest job", &pkgerrs.StateError{
		Operation: "wait for ingest job",
		Message:   fmt.Sprintf("job %s still %s", jobID, state),
		Err:       err,
	})
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
