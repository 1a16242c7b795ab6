package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var timeType = reflect.TypeOf(time.Time{})

// BindJSON decodes and validates the request body into out, writing the
// error envelope and returning false when it cannot. The body is kept on the
// context so a failed timestamp can be traced back to its field.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindBodyWithJSON(out)
	if err == nil {
		return true
	}

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "request_too_large", "Request body is too large", nil)
		return false
	}

	var body []byte
	if v, ok := ctx.Get(gin.BodyBytesKey); ok {
		body, _ = v.([]byte)
	}

	RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out, body))
	return false
}

func parseBindError(err error, out interface{}, body []byte) interface{} {
	root := structType(reflect.TypeOf(out))

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			rule, param := fe.Tag(), fe.Param()
			fields = append(fields, FieldError{
				Field:   jsonPath(root, fe.StructNamespace()),
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param),
			})
		}
		return gin.H{"fields": fields}
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := jsonPath(root, typeErr.Field)
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}
	}

	// time.Time reports parse failures without the field, so find it in the body
	if fields := badTimestamps(root, body); len(fields) > 0 {
		return gin.H{"fields": fields}
	}

	return gin.H{"reason": err.Error()}
}

// badTimestamps returns a datetime error for every top level time field of
// root whose raw value does not decode as a timestamp.
func badTimestamps(root reflect.Type, body []byte) []FieldError {
	if root == nil || len(body) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	var fields []FieldError
	for i := 0; i < root.NumField(); i++ {
		sf := root.Field(i)
		if unwrap(sf.Type) != timeType {
			continue
		}

		name := jsonName(sf)
		v, ok := raw[name]
		if !ok || string(v) == "null" {
			continue
		}

		var t time.Time
		if err := json.Unmarshal(v, &t); err != nil {
			fields = append(fields, FieldError{
				Field:   name,
				Rule:    "datetime",
				Param:   time.RFC3339,
				Message: "must be an RFC 3339 timestamp",
			})
		}
	}
	return fields
}

// jsonPath turns a Go field path such as "CreateRequest.IntervalHours" into
// its JSON form ("intervalHours"). Unknown segments are kept as they are.
func jsonPath(root reflect.Type, goPath string) string {
	parts := strings.Split(strings.TrimSpace(goPath), ".")
	if root != nil && len(parts) > 1 && parts[0] == root.Name() {
		parts = parts[1:]
	}

	cur := root
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}

		name, index, _ := strings.Cut(part, "[")
		if index != "" {
			index = "[" + index
		}

		seg := name
		var next reflect.Type
		if cur != nil {
			if sf, ok := cur.FieldByName(name); ok {
				seg = jsonName(sf)
				next = structType(sf.Type)
			}
		}

		out = append(out, seg+index)
		cur = next
	}
	return strings.Join(out, ".")
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

func unwrap(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}
	return nil
}

// structType returns the struct under any pointers or slices, or nil.
func structType(t reflect.Type) reflect.Type {
	t = unwrap(t)
	if t != nil && t.Kind() == reflect.Struct && t != timeType {
		return t
	}
	return nil
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "gt":
		return "must be greater than " + param
	case "numeric":
		return "must contain only digits"
	case "datetime":
		if param == "2006-01-02" {
			return "must be a date formatted as YYYY-MM-DD"
		}
		return "must match the layout " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
