package internal

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/validation"
)

const soapLoginPath = "/services/Soap/u/"

const soapLoginEnvelope = `<?xml version="1.0" encoding="utf-8" ?>
<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:urn="urn:partner.soap.sforce.com">
  <env:Body>
    <urn:login>
      <urn:username>%s</urn:username>
      <urn:password>%s</urn:password>
    </urn:login>
  </env:Body>
</env:Envelope>`

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		LoginResponse *struct {
			Result soapLoginResult `xml:"result"`
		} `xml:"loginResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type soapLoginResult struct {
	MetadataServerURL string `xml:"metadataServerUrl"`
	PasswordExpired   bool   `xml:"passwordExpired"`
	Sandbox           bool   `xml:"sandbox"`
	ServerURL         string `xml:"serverUrl"`
	SessionID         string `xml:"sessionId"`
	UserID            string `xml:"userId"`
	UserInfo          struct {
		OrganizationID string `xml:"organizationId"`
	} `xml:"userInfo"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

// SOAPLoginURL returns the partner SOAP endpoint for the given API version.
func (a *Authenticator) SOAPLoginURL(version string) string {
	return a.loginURL + soapLoginPath + validation.SOAPVersion(version)
}

// SOAPLogin calls the partner API login() operation. It needs no connected app,
// only a username and a password (with the security token appended when the
// org requires one).
func (a *Authenticator) SOAPLogin(ctx context.Context, username, password, version string) (*types.SOAPLoginResult, error) {
	envelope := fmt.Sprintf(soapLoginEnvelope, xmlEscape(username), xmlEscape(password))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.SOAPLoginURL(version), strings.NewReader(envelope))
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to create SOAP login request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", "login")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute SOAP login request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var env soapEnvelope
	decodeErr := xml.Unmarshal(body, &env)
	if decodeErr == nil && env.Body.Fault != nil {
		return nil, &pkgerrs.AuthError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.Body.Fault.Code,
			Description: env.Body.Fault.String,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if decodeErr != nil {
		return nil, &pkgerrs.ParseError{Operation: "soap login", Err: decodeErr}
	}
	if env.Body.LoginResponse == nil || env.Body.LoginResponse.Result.SessionID == "" {
		return nil, &pkgerrs.ParseError{Operation: "soap login", Message: "response has no sessionId"}
	}

	r := env.Body.LoginResponse.Result
	a.logger.Debug("salesforce login", "flow", "soap", "server_url", r.ServerURL)

	return &types.SOAPLoginResult{
		SessionID:         r.SessionID,
		ServerURL:         r.ServerURL,
		MetadataServerURL: r.MetadataServerURL,
		UserID:            r.UserID,
		OrganizationID:    r.UserInfo.OrganizationID,
		PasswordExpired:   r.PasswordExpired,
		Sandbox:           r.Sandbox,
	}, nil
}

// InstanceURLFromServerURL strips the service path from a SOAP serverUrl,
// e.g. "https://na1.salesforce.com/services/Soap/u/44.0/00D..." -> "https://na1.salesforce.com".
func InstanceURLFromServerURL(serverURL string) string {
	return substringBefore(serverURL, "/services/")
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
