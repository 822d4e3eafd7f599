package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	force "github.com/jamesprial/go-salesforce-api-wrapper"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

var (
	recordData  string
	getFields   []string
	queryAll    bool
	queryMax    int
	showToken   bool
	describeRaw bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}

		session := map[string]any{
			"instance_url": client.InstanceURL(),
			"api_version":  client.Version(),
		}
		if tok := client.AccessToken(); tok != nil {
			session["token_type"] = tok.TokenType
			session["issued_at"] = tok.IssuedAt
			if showToken {
				session["access_token"] = tok.Value
			}
		}
		return printResult(cmd.OutOrStdout(), session)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the API versions available on the instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		versions, err := client.Versions(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), versions)
	},
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the org's limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		limits, err := client.Limits(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), limits)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query SOQL",
	Short: "Run a SOQL query, following every page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}

		it := force.NewQueryIterator[map[string]any](cmd.Context(), client, args[0])
		if queryAll {
			it.IncludeDeleted()
		}
		records, err := it.Collect(queryMax)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{
			"totalSize": it.TotalSize(),
			"records":   records,
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search SOSL",
	Short: "Run a SOSL search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		result, err := client.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var getCmd = &cobra.Command{
	Use:   "get SOBJECT ID",
	Short: "Fetch a record by ID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		var record map[string]any
		if err := client.FindByID(cmd.Context(), args[0], args[1], &record, getFields...); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), record)
	},
}

var createCmd = &cobra.Command{
	Use:   "create SOBJECT [Field=value ...]",
	Short: "Create a record",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := readRecord(cmd.InOrStdin(), recordData, args[1:])
		if err != nil {
			return err
		}
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		result, err := client.Create(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update SOBJECT ID [Field=value ...]",
	Short: "Update fields of a record",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := readRecord(cmd.InOrStdin(), recordData, args[2:])
		if err != nil {
			return err
		}
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.Update(cmd.Context(), args[0], args[1], fields); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{"id": args[1], "updated": true})
	},
}

var upsertCmd = &cobra.Command{
	Use:   "upsert SOBJECT EXTERNAL_ID_FIELD KEY [Field=value ...]",
	Short: "Create or update a record by external ID",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := readRecord(cmd.InOrStdin(), recordData, args[3:])
		if err != nil {
			return err
		}
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		result, err := client.Upsert(cmd.Context(), args[0], args[1], args[2], fields)
		if err != nil {
			return err
		}
		if result == nil {
			return printResult(cmd.OutOrStdout(), map[string]any{"created": false})
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete SOBJECT ID",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.Destroy(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{"id": args[1], "deleted": true})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe [SOBJECT...]",
	Short: "Describe sobjects, or list all sobjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 0 {
			global, err := client.DescribeGlobal(cmd.Context())
			if err != nil {
				return err
			}
			if describeRaw {
				return printResult(cmd.OutOrStdout(), global)
			}
			names := make([]string, len(global.SObjects))
			for i, s := range global.SObjects {
				names[i] = s.Name
			}
			return printResult(cmd.OutOrStdout(), names)
		}

		results, err := describeAll(cmd.Context(), client, args)
		if err != nil {
			return err
		}

		out := make([]any, len(results))
		for i, result := range results {
			out[i] = summarizeDescribe(result)
		}
		if len(out) == 1 {
			return printResult(cmd.OutOrStdout(), out[0])
		}
		return printResult(cmd.OutOrStdout(), out)
	},
}

const describeParallelism = 4

// describeAll describes sobjects concurrently and returns the results in
// argument order. The first failure cancels the remaining calls.
func describeAll(ctx context.Context, client *force.Client, sobjects []string) ([]*types.DescribeResponse, error) {
	results := make([]*types.DescribeResponse, len(sobjects))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(describeParallelism)
	for i, name := range sobjects {
		g.Go(func() error {
			result, err := client.Describe(gCtx, name)
			if err != nil {
				return fmt.Errorf("describe %s: %w", name, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func summarizeDescribe(result *types.DescribeResponse) any {
	if describeRaw {
		return result
	}
	fields := make([]map[string]any, len(result.Fields))
	for i, f := range result.Fields {
		fields[i] = map[string]any{"name": f.Name, "type": f.Type, "label": f.Label}
	}
	return map[string]any{"name": result.Name, "label": result.Label, "fields": fields}
}

func init() {
	loginCmd.Flags().BoolVar(&showToken, "show-token", false, "Include the access token in the output")
	queryCmd.Flags().BoolVar(&queryAll, "all", false, "Include deleted and archived records")
	queryCmd.Flags().IntVar(&queryMax, "max", 0, "Stop after this many records (0 = all)")
	getCmd.Flags().StringSliceVar(&getFields, "fields", nil, "Fields to return (default all)")
	describeCmd.Flags().BoolVar(&describeRaw, "raw", false, "Print the full describe result")

	for _, cmd := range []*cobra.Command{createCmd, updateCmd, upsertCmd} {
		cmd.Flags().StringVarP(&recordData, "data", "d", "", "Record as JSON; @file reads a file, - reads stdin")
	}

	rootCmd.AddCommand(loginCmd, versionsCmd, limitsCmd, queryCmd, searchCmd,
		getCmd, createCmd, updateCmd, upsertCmd, deleteCmd, describeCmd)
}

// readRecord builds the record body from --data or from Field=value arguments.
func readRecord(stdin io.Reader, data string, pairs []string) (map[string]any, error) {
	if data != "" && len(pairs) > 0 {
		return nil, fmt.Errorf("use either --data or Field=value arguments, not both")
	}

	if data != "" {
		var raw []byte
		var err error
		switch {
		case data == "-":
			raw, err = io.ReadAll(stdin)
		case strings.HasPrefix(data, "@"):
			raw, err = os.ReadFile(strings.TrimPrefix(data, "@"))
		default:
			raw = []byte(data)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record data: %w", err)
		}

		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("record data is not a JSON object: %w", err)
		}
		return record, nil
	}

	record := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected Field=value", pair)
		}
		record[name] = value
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("no fields given")
	}
	return record, nil
}
