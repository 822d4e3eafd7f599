package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	force "github.com/jamesprial/go-salesforce-api-wrapper"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

type Account struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	Industry string `json:"Industry"`
}

func main() {
	// Get credentials from environment variables
	clientID := os.Getenv("SFDC_CLIENT_ID")
	clientSecret := os.Getenv("SFDC_CLIENT_SECRET")
	username := os.Getenv("SFDC_USERNAME")
	password := os.Getenv("SFDC_PASSWORD")

	if username == "" || password == "" {
		log.Fatal("SFDC_USERNAME and SFDC_PASSWORD environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Without a ClientID, Connect falls back to the SOAP login.
	config := &force.Config{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Username:      username,
		Password:      password,
		SecurityToken: os.Getenv("SFDC_SECURITY_TOKEN"),
		UserAgent:     "example-app/1.0",
		Logger:        logger,
	}
	if loginURL := os.Getenv("SFDC_LOGIN_URL"); loginURL != "" {
		config.LoginURL = loginURL
	}

	client, err := force.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to Salesforce: %v", err)
	}
	fmt.Printf("Connected to %s (API %s)\n", client.InstanceURL(), client.Version())

	// First page only
	var page types.QueryResponse[Account]
	if err := client.Query(ctx, "SELECT Id, Name, Industry FROM Account ORDER BY Name LIMIT 5", &page); err != nil {
		log.Printf("Failed to query accounts: %v", err)
	} else {
		fmt.Printf("\nFirst %d of %d accounts:\n", len(page.Records), page.TotalSize)
		for i, a := range page.Records {
			fmt.Printf("%d. %s (%s)\n", i+1, a.Name, a.Industry)
		}
	}

	// Every page, fetched as needed
	it := force.NewQueryIterator[Account](ctx, client, "SELECT Id, Name, Industry FROM Account")
	count := 0
	for it.HasNext() {
		if _, err := it.Next(); err != nil {
			break
		}
		count++
	}
	if err := it.Err(); err != nil {
		log.Printf("Iteration stopped: %v", err)
	}
	fmt.Printf("\nIterated over %d of %d accounts\n", count, it.TotalSize())

	describe, err := client.Describe(ctx, "Account")
	if err != nil {
		log.Printf("Failed to describe Account: %v", err)
	} else {
		fmt.Printf("\nAccount has %d fields\n", len(describe.Fields))
		if f := describe.Field("Industry"); f != nil {
			fmt.Printf("Industry is a %s with %d picklist values\n", f.Type, len(f.PicklistValues))
		}
	}

	limits, err := client.Limits(ctx)
	if err != nil {
		log.Printf("Failed to get limits: %v", err)
	} else if l, ok := limits["DailyApiRequests"]; ok {
		fmt.Printf("\nDaily API requests: %d of %d remaining\n", l.Remaining, l.Max)
	}

	usage := client.APIUsage()
	fmt.Printf("API usage reported on last response: %d/%d\n", usage.Used, usage.Max)
}
