package internal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/validation"
)

const maxUserAgentLength = 256

// Validator checks configuration structs and the identifiers that end up in
// request paths. Failures are reported as *errors.ConfigError.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the Salesforce-specific tags registered:
// sfname (API name), sfid (15/18 char record ID), sfversion (vNN.N) and nocrlf.
func NewValidator() *Validator {
	v := validator.New()
	mustRegister(v, "sfname", func(fl validator.FieldLevel) bool {
		return validation.IsValidAPIName(fl.Field().String())
	})
	mustRegister(v, "sfid", func(fl validator.FieldLevel) bool {
		return validation.IsValidID(fl.Field().String())
	})
	mustRegister(v, "sfversion", func(fl validator.FieldLevel) bool {
		return validation.IsValidAPIVersion(fl.Field().String())
	})
	mustRegister(v, "nocrlf", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Struct validates s against its `validate` tags and returns the first failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return &pkgerrs.ConfigError{Field: fe.Field(), Message: tagMessage(fe)}
	}
	return &pkgerrs.ConfigError{Message: err.Error()}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", fe.Param())
	case "url":
		return fmt.Sprintf("%q is not an absolute URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("%v must be one of [%s]", fe.Value(), fe.Param())
	case "sfname":
		return fmt.Sprintf("%q is not a valid API name", fe.Value())
	case "sfid":
		return fmt.Sprintf("%q is not a valid record ID", fe.Value())
	case "sfversion":
		return fmt.Sprintf("%q is not a valid API version (expected e.g. v44.0)", fe.Value())
	case "nocrlf":
		return "cannot contain newline characters"
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ValidateSObjectName checks an sobject API name such as Account or Invoice__c.
func (v *Validator) ValidateSObjectName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "sobject", Message: "sobject name cannot be empty"}
	}
	if !validation.IsValidAPIName(name) {
		return &pkgerrs.ConfigError{Field: "sobject", Message: fmt.Sprintf("%q is not a valid API name", name)}
	}
	return nil
}

// ValidateFieldName checks a field API name used in a path, e.g. an external ID field.
func (v *Validator) ValidateFieldName(field, name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "field name cannot be empty"}
	}
	if !validation.IsValidAPIName(name) {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("%q is not a valid API name", name)}
	}
	return nil
}

// ValidateID checks a record ID.
func (v *Validator) ValidateID(field, id string) error {
	if id == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "ID cannot be empty"}
	}
	if !validation.IsValidID(id) {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("%q is not a valid record ID", id)}
	}
	return nil
}

// ValidatePathValue checks a free-form value placed into a single path segment,
// such as an external ID value or a bulk job ID.
func (v *Validator) ValidatePathValue(field, value string) error {
	if value == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "value cannot be empty"}
	}
	if strings.ContainsAny(value, "/?#\r\n") {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("%q cannot contain '/', '?', '#' or newlines", value)}
	}
	return nil
}

// ValidateQuery checks that a SOQL or SOSL string is not blank.
func (v *Validator) ValidateQuery(field, q string) error {
	if strings.TrimSpace(q) == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "query cannot be empty"}
	}
	return nil
}

// ValidateUserAgent validates the User-Agent string to prevent header injection attacks.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}
	return nil
}
