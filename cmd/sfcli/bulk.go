package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	force "github.com/jamesprial/go-salesforce-api-wrapper"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

var (
	bulkOperation  string
	bulkExternalID string
	bulkLineEnding string
	bulkDelimiter  string
	bulkTimeout    time.Duration
	bulkResults    string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Bulk API 2.0 ingest jobs",
}

var bulkCreateCmd = &cobra.Command{
	Use:   "create SOBJECT",
	Short: "Open an ingest job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		job, err := client.CreateIngestJob(cmd.Context(), jobRequest(args[0]))
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), job)
	},
}

var bulkUploadCmd = &cobra.Command{
	Use:   "upload JOB_ID FILE",
	Short: "Upload CSV data to an open job (FILE - reads stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, closeFn, err := openInput(cmd.InOrStdin(), args[1])
		if err != nil {
			return err
		}
		defer closeFn()

		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.UploadJobData(cmd.Context(), args[0], data); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{"id": args[0], "uploaded": true})
	},
}

var bulkCloseCmd = &cobra.Command{
	Use:   "close JOB_ID",
	Short: "Mark the upload complete and start processing",
	Args:  cobra.ExactArgs(1),
	RunE: jobStateCommand(func(ctx context.Context, c *force.Client, id string) (*types.IngestJobInfo, error) {
		return c.CloseIngestJob(ctx, id)
	}),
}

var bulkAbortCmd = &cobra.Command{
	Use:   "abort JOB_ID",
	Short: "Abort a job",
	Args:  cobra.ExactArgs(1),
	RunE: jobStateCommand(func(ctx context.Context, c *force.Client, id string) (*types.IngestJobInfo, error) {
		return c.AbortIngestJob(ctx, id)
	}),
}

var bulkStatusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Show the state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: jobStateCommand(func(ctx context.Context, c *force.Client, id string) (*types.IngestJobInfo, error) {
		return c.GetIngestJob(ctx, id)
	}),
}

var bulkWaitCmd = &cobra.Command{
	Use:   "wait JOB_ID",
	Short: "Wait until a job completes, fails or is aborted",
	Args:  cobra.ExactArgs(1),
	RunE: jobStateCommand(func(ctx context.Context, c *force.Client, id string) (*types.IngestJobInfo, error) {
		return c.WaitForIngestJob(ctx, id, waitOptions())
	}),
}

var bulkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingest jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		jobs, err := client.ListIngestJobs(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), jobs)
	},
}

var bulkDeleteCmd = &cobra.Command{
	Use:   "delete JOB_ID",
	Short: "Delete a closed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.DeleteIngestJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{"id": args[0], "deleted": true})
	},
}

var bulkResultsCmd = &cobra.Command{
	Use:   "results JOB_ID",
	Short: "Print successful, failed or unprocessed records of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}

		var records []map[string]string
		switch bulkResults {
		case "successful":
			records, err = client.GetJobSuccessfulResults(cmd.Context(), args[0])
		case "failed":
			records, err = client.GetJobFailedResults(cmd.Context(), args[0])
		case "unprocessed":
			records, err = client.GetJobUnprocessedRecords(cmd.Context(), args[0])
		default:
			return fmt.Errorf("invalid --kind %q: expected successful, failed or unprocessed", bulkResults)
		}
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), records)
	},
}

var bulkLoadCmd = &cobra.Command{
	Use:   "load SOBJECT FILE",
	Short: "Create a job, upload FILE, close the job and wait for it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, closeFn, err := openInput(cmd.InOrStdin(), args[1])
		if err != nil {
			return err
		}
		defer closeFn()

		client, err := connect(ctx)
		if err != nil {
			return err
		}

		job, err := client.CreateIngestJob(ctx, jobRequest(args[0]))
		if err != nil {
			return err
		}
		if err := client.UploadJobData(ctx, job.ID, data); err != nil {
			return abortAfter(ctx, client, job.ID, err)
		}
		if _, err := client.CloseIngestJob(ctx, job.ID); err != nil {
			return err
		}

		final, err := client.WaitForIngestJob(ctx, job.ID, waitOptions())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), final)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{bulkCreateCmd, bulkLoadCmd} {
		cmd.Flags().StringVar(&bulkOperation, "operation", string(types.OperationInsert), "insert, update, upsert, delete or hardDelete")
		cmd.Flags().StringVar(&bulkExternalID, "external-id", "", "External ID field (required for upsert)")
		cmd.Flags().StringVar(&bulkLineEnding, "line-ending", "", "LF or CRLF (default LF)")
		cmd.Flags().StringVar(&bulkDelimiter, "delimiter", "", "Column delimiter such as COMMA or TAB (default COMMA)")
	}
	for _, cmd := range []*cobra.Command{bulkWaitCmd, bulkLoadCmd} {
		cmd.Flags().DurationVar(&bulkTimeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	}
	bulkResultsCmd.Flags().StringVar(&bulkResults, "kind", "successful", "successful, failed or unprocessed")

	bulkCmd.AddCommand(bulkCreateCmd, bulkUploadCmd, bulkCloseCmd, bulkAbortCmd, bulkStatusCmd,
		bulkWaitCmd, bulkListCmd, bulkDeleteCmd, bulkResultsCmd, bulkLoadCmd)
	rootCmd.AddCommand(bulkCmd)
}

func jobRequest(sobject string) *types.IngestJobRequest {
	return &types.IngestJobRequest{
		Object:              sobject,
		Operation:           types.Operation(bulkOperation),
		ExternalIDFieldName: bulkExternalID,
		LineEnding:          bulkLineEnding,
		ColumnDelimiter:     bulkDelimiter,
	}
}

func waitOptions() *force.WaitOptions {
	return &force.WaitOptions{MaxElapsedTime: bulkTimeout}
}

func jobStateCommand(fn func(context.Context, *force.Client, string) (*types.IngestJobInfo, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		job, err := fn(cmd.Context(), client, args[0])
		if job != nil {
			if printErr := printResult(cmd.OutOrStdout(), job); printErr != nil {
				return printErr
			}
		}
		return err
	}
}

// abortAfter aborts jobID so no open job is left behind, and reports cause
// together with any abort failure.
func abortAfter(ctx context.Context, client *force.Client, jobID string, cause error) error {
	result := multierror.Append(nil, fmt.Errorf("upload to job %s: %w", jobID, cause))
	if _, err := client.AbortIngestJob(ctx, jobID); err != nil {
		result = multierror.Append(result, fmt.Errorf("abort job %s: %w", jobID, err))
	}
	return result.ErrorOrNil()
}

// openInput opens path for reading, or returns stdin for "-".
func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
