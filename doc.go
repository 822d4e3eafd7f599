// Package force provides a Go client for the Salesforce REST, SOAP login and
// Bulk API 2.0 interfaces.
//
// # Overview
//
// The client authenticates against a login endpoint, keeps the resulting access
// token and instance URL, and sends every API call to
// {instance}/services/data/{version}/. Each operation is a single HTTP request:
// a 2xx response is decoded into a typed result from pkg/types, anything else
// is decoded into a typed error from pkg/errors.
//
// # Features
//
//   - OAuth2 password, refresh token and JWT bearer flows, plus SOAP login()
//   - SOQL query, queryAll and queryMore, with a generic QueryIterator
//   - SOSL search
//   - sobject create, read, update, upsert and delete
//   - describe, describe global, versions and org limits
//   - Bulk API 2.0 ingest jobs with CSV upload, results and polling
//   - Client-side rate limiting and Sforce-Limit-Info tracking
//   - Structured logging support via Go's slog package
//
// # Quick Start
//
//	client, err := force.NewClient(&force.Config{
//		ClientID:     "your-consumer-key",
//		ClientSecret: "your-consumer-secret",
//		Username:     "user@example.com",
//		Password:     "password",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Connection Lifecycle
//
// NewClient only validates configuration. Connect picks a login flow from the
// configured credentials; LoginWithCredential, Refresh, LoginBySOAP and
// LoginWithJWT run a specific flow. An existing session can be restored with
// SetInstanceURL and SetAccessToken. API calls made without a session fail with
// a StateError wrapping errors.ErrNotLoggedIn and send nothing.
//
// # Common Operations
//
// Query records into your own type:
//
//	type Account struct {
//		ID   string `json:"Id"`
//		Name string `json:"Name"`
//	}
//
//	var res types.QueryResponse[Account]
//	if err := client.Query(ctx, "SELECT Id, Name FROM Account", &res); err != nil {
//		log.Fatal(err)
//	}
//
// Walk every page of a large result:
//
//	it := force.NewQueryIterator[Account](ctx, client, "SELECT Id, Name FROM Account")
//	for it.HasNext() {
//		acc, err := it.Next()
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(acc.Name)
//	}
//
// Create, update and delete:
//
//	created, err := client.Create(ctx, "Account", map[string]any{"Name": "Acme"})
//	err = client.Update(ctx, "Account", created.ID, map[string]any{"Name": "Acme Corp"})
//	err = client.Destroy(ctx, "Account", created.ID)
//
// Load records with Bulk API 2.0:
//
//	job, err := client.CreateIngestJob(ctx, &types.IngestJobRequest{Object: "Account", Operation: types.OperationInsert})
//	err = client.UploadJobRecords(ctx, job.ID, []string{"Name"}, []map[string]string{{"Name": "Acme"}})
//	_, err = client.CloseIngestJob(ctx, job.ID)
//	job, err = client.WaitForIngestJob(ctx, job.ID, nil)
//
// # Error Handling
//
// Every method returns a *ClientError naming the operation. Use errors.As to
// reach the cause:
//
//	var apiErr *errors.APIError
//	if stderrors.As(err, &apiErr) && apiErr.HasCode("INVALID_SESSION_ID") {
//		// refresh and retry
//	}
//
// The causes are *errors.ConfigError (bad configuration or arguments),
// *errors.AuthError (token endpoint or SOAP fault), *errors.StateError (no
// session), *errors.RequestError (transport), *errors.ParseError (undecodable
// body) and *errors.APIError (Salesforce error list).
//
// # Rate Limiting
//
// Config.RateLimit enables a token bucket in front of every API request. A
// Retry-After header delays subsequent requests. Failed requests are never retried.
package force
