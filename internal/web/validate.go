// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/tollgate/tollgate/internal/auth"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

type signupRequest struct {
	Name     string `json:"name" jsonschema:"minLength=2"`
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=6"`
}

type loginRequest struct {
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" jsonschema:"format=email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" jsonschema:"minLength=1"`
	Password string `json:"password" jsonschema:"minLength=6"`
}

// fieldMessages holds the single public message reported per field,
// whichever schema keyword failed.
var fieldMessages = map[string]string{
	"name":     "Name must be at least 2 characters",
	"email":    "Valid email required",
	"token":    "Reset token required",
	"password": "Password must be at least 6 characters",
}

// loginFieldMessages overrides fieldMessages for login, where any
// non-empty password is acceptable.
var loginFieldMessages = map[string]string{
	"password": "Password required",
}

// requestValidator checks decoded bodies against schemas reflected from
// the request structs.
type requestValidator struct {
	schemas map[reflect.Type]*requestSchema
}

type requestSchema struct {
	schema    *jschema.Schema
	fields    []string
	overrides map[string]string
}

// requestBodies lists the validated request types with the route each
// serves and its per-field message overrides.
var requestBodies = []struct {
	name      string
	value     any
	overrides map[string]string
}{
	{"signup", &signupRequest{}, nil},
	{"login", &loginRequest{}, loginFieldMessages},
	{"forgot-password", &forgotPasswordRequest{}, nil},
	{"reset-password", &resetPasswordRequest{}, nil},
}

func newRequestValidator() (*requestValidator, error) {
	v := &requestValidator{schemas: make(map[reflect.Type]*requestSchema)}
	for _, req := range requestBodies {
		rs, err := compileSchema(req.value)
		if err != nil {
			return nil, err
		}
		rs.overrides = req.overrides
		v.schemas[reflect.TypeOf(req.value)] = rs
	}
	return v, nil
}

func reflectSchema(value any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	return r.Reflect(value)
}

// RequestSchemas returns the indented JSON Schema of every request body,
// keyed by route name.
func RequestSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte, len(requestBodies))
	for _, req := range requestBodies {
		schema := reflectSchema(req.value)
		schema.ID = jsonschema.ID("https://tollgate.dev/schemas/" + req.name + ".schema.json")
		schema.Title = "POST /" + req.name + " request body"
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return nil, oops.Code("SCHEMA_INVALID").With("request", req.name).Wrap(err)
		}
		out[req.name] = data
	}
	return out, nil
}

func compileSchema(value any) (*requestSchema, error) {
	schema := reflectSchema(value)
	name := reflect.TypeOf(value).Elem().Name()

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID").With("request", name).Wrap(err)
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID").With("request", name).Wrap(err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	url := name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.Code("SCHEMA_INVALID").With("request", name).Wrap(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID").With("request", name).Wrap(err)
	}

	var fields []string
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, pair.Key)
		}
	}
	return &requestSchema{schema: compiled, fields: fields}, nil
}

// decode reads the body into dst after validating it. Validation
// failures are returned as auth validation errors with one entry per
// offending field, in declaration order.
func (v *requestValidator) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	rs, ok := v.schemas[reflect.TypeOf(dst)]
	if !ok {
		return oops.Code("SCHEMA_MISSING").Errorf("no schema registered for %T", dst)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return auth.NewValidationError(auth.FieldError{
				Field:   "body",
				Message: fmt.Sprintf("Request body must not exceed %d bytes", MaxBodyBytes),
			})
		}
		return oops.Code("BODY_READ_FAILED").Wrap(err)
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return auth.NewValidationError(auth.FieldError{Field: "body", Message: "Request body must be valid JSON"})
	}
	if _, isObject := doc.(map[string]any); !isObject {
		return auth.NewValidationError(auth.FieldError{Field: "body", Message: "Request body must be a JSON object"})
	}

	if err := rs.schema.Validate(doc); err != nil {
		var verr *jschema.ValidationError
		if !errors.As(err, &verr) {
			return oops.Code("SCHEMA_VALIDATE_FAILED").Wrap(err)
		}
		return auth.NewValidationError(rs.fieldErrors(verr)...)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return oops.Code("BODY_DECODE_FAILED").Wrap(err)
	}
	return nil
}

func (rs *requestSchema) fieldErrors(verr *jschema.ValidationError) []auth.FieldError {
	bad := make(map[string]bool)
	collectFields(verr, bad)

	out := make([]auth.FieldError, 0, len(bad))
	for _, field := range rs.fields {
		if bad[field] {
			out = append(out, auth.FieldError{Field: field, Message: rs.message(field)})
		}
	}
	return out
}

func (rs *requestSchema) message(field string) string {
	if msg, ok := rs.overrides[field]; ok {
		return msg
	}
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	return "Invalid " + strings.ToLower(field)
}

// collectFields records the top-level property behind every leaf error.
// A missing property is reported on its parent, so required errors name
// the field through the error kind instead of the location.
func collectFields(verr *jschema.ValidationError, bad map[string]bool) {
	if len(verr.Causes) == 0 {
		if req, ok := verr.ErrorKind.(*kind.Required); ok {
			for _, field := range req.Missing {
				bad[field] = true
			}
			return
		}
		if len(verr.InstanceLocation) > 0 {
			bad[verr.InstanceLocation[0]] = true
		}
		return
	}
	for _, cause := range verr.Causes {
		collectFields(cause, bad)
	}
}
