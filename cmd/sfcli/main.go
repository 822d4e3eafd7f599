// Command sfcli is a command line client for the Salesforce REST and Bulk APIs.
//
// Credentials are read from SFDC_* environment variables, or a .env file in
// the working directory:
//
//	SFDC_CLIENT_ID, SFDC_CLIENT_SECRET, SFDC_USERNAME, SFDC_PASSWORD,
//	SFDC_SECURITY_TOKEN, SFDC_LOGIN_URL, SFDC_API_VERSION, SFDC_INSTANCE_URL,
//	SFDC_ACCESS_TOKEN, SFDC_REFRESH_TOKEN, SFDC_PRIVATE_KEY_FILE
//
// Results are printed to stdout as JSON, or YAML with --format yaml.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	flagLoginURL   string
	flagAPIVersion string
	flagDebug      bool
	flagFormat     string
)

var rootCmd = &cobra.Command{
	Use:           "sfcli",
	Short:         "Salesforce REST and Bulk API command line client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLoginURL, "login-url", "", "Login endpoint (overrides SFDC_LOGIN_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIVersion, "api-version", "", "API version such as v44.0 (overrides SFDC_API_VERSION)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log requests to stderr")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "Output format: json or yaml")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// printResult writes v in the format selected by --format.
func printResult(w io.Writer, v any) error {
	switch flagFormat {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Go through JSON so keys match the API field names.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid --format %q: expected json or yaml", flagFormat)
	}
}
