// Command smoketest runs a create/read/update/upsert/query/delete round trip
// against a real org. It needs the same SFDC_* variables as sfcli and leaves
// no records behind when it succeeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	force "github.com/jamesprial/go-salesforce-api-wrapper"
	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

type settings struct {
	ClientID      string `envconfig:"SFDC_CLIENT_ID"`
	ClientSecret  string `envconfig:"SFDC_CLIENT_SECRET"`
	Username      string `envconfig:"SFDC_USERNAME" required:"true"`
	Password      string `envconfig:"SFDC_PASSWORD" required:"true"`
	SecurityToken string `envconfig:"SFDC_SECURITY_TOKEN"`
	LoginURL      string `envconfig:"SFDC_LOGIN_URL" default:"https://login.salesforce.com"`
	APIVersion    string `envconfig:"SFDC_API_VERSION" default:"v44.0"`
	Debug         bool   `envconfig:"SFDC_DEBUG"`
}

type account struct {
	ID   string `json:"Id,omitempty"`
	Name string `json:"Name"`
}

func main() {
	_ = godotenv.Load()

	var s settings
	if err := envconfig.Process("", &s); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	client, err := force.NewClient(&force.Config{
		ClientID:      s.ClientID,
		ClientSecret:  s.ClientSecret,
		Username:      s.Username,
		Password:      s.Password,
		SecurityToken: s.SecurityToken,
		LoginURL:      s.LoginURL,
		APIVersion:    s.APIVersion,
		UserAgent:     "sf-smoketest/0.1",
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, client, logger); err != nil {
		log.Fatalf("Smoke test failed: %v", err)
	}
	fmt.Println("Smoke test passed")
}

func run(ctx context.Context, client *force.Client, logger *slog.Logger) (err error) {
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Info("connected", "instance_url", client.InstanceURL(), "version", client.Version())

	name := "smoketest-" + uuid.NewString()
	created, err := client.Create(ctx, "Account", account{Name: name})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	id := created.ID
	logger.Info("created account", "id", id)

	// Runs after the explicit delete, so NOT_FOUND is expected here.
	defer func() {
		if cleanupErr := client.Destroy(context.Background(), "Account", id); cleanupErr != nil && !isNotFound(cleanupErr) {
			err = multierror.Append(err, fmt.Errorf("cleanup %s: %w", id, cleanupErr))
		}
	}()

	var found account
	if err := client.FindByID(ctx, "Account", id, &found, "Id", "Name"); err != nil {
		return fmt.Errorf("find: %w", err)
	}
	if found.Name != name {
		return fmt.Errorf("find: got name %q, want %q", found.Name, name)
	}

	renamed := name + "-updated"
	if err := client.Update(ctx, "Account", id, account{Name: renamed}); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	upserted, err := client.Upsert(ctx, "Account", "Id", id, account{Name: renamed + "-upserted"})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if upserted != nil {
		return fmt.Errorf("upsert: expected an update of %s, got a new record %s", id, upserted.ID)
	}

	var page types.QueryResponse[account]
	soql := fmt.Sprintf("SELECT Id, Name FROM Account WHERE Id = '%s'", id)
	if err := client.Query(ctx, soql, &page); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if page.TotalSize != 1 || page.Records[0].Name != renamed+"-upserted" {
		return fmt.Errorf("query: unexpected result %+v", page)
	}

	if err := client.Destroy(ctx, "Account", id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	err = client.FindByID(ctx, "Account", id, &found)
	if !isNotFound(err) {
		return fmt.Errorf("find after delete: expected NOT_FOUND, got %v", err)
	}
	logger.Info("deleted account", "id", id)
	return nil
}

func isNotFound(err error) bool {
	var apiErr *pkgerrs.APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == 404 || apiErr.HasCode("NOT_FOUND") || apiErr.HasCode("ENTITY_IS_DELETED"))
}
