package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON binds a JSON body. Validation failures answer 422 with
// field-level errors; malformed JSON answers 400.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	return handleBindError(ctx, ctx.ShouldBindJSON(out), out)
}

// Bind binds JSON or form/multipart bodies depending on Content-Type, with
// the same error mapping as BindJSON. Used by the contact endpoints, which
// accept multipart when an image rides along.
func Bind(ctx *gin.Context, out interface{}) bool {
	return handleBindError(ctx, ctx.ShouldBind(out), out)
}

func handleBindError(ctx *gin.Context, err error, out interface{}) bool {
	if err == nil {
		return true
	}

	var validatorErrors validator.ValidationErrors

	if errors.As(err, &validatorErrors) {
		RespondUnprocessable(ctx, "Validation failed", gin.H{"fields": fieldErrorsFrom(validatorErrors, out)})
		return false
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "invalid_json_syntax"})
		return false
	}

	var typeError *json.UnmarshalTypeError

	if errors.As(err, &typeError) {
		field := jsonFieldName(out, typeError.Field)

		RespondBadRequest(ctx, "Invalid request body", gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", typeError.Type.String()),
				},
			},
		})
		return false
	}

	// final fallback if the error could not be deciphered
	RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": err.Error()})
	return false
}

func fieldErrorsFrom(errs validator.ValidationErrors, out interface{}) []FieldError {
	fields := make([]FieldError, 0, len(errs))

	for _, fe := range errs {
		rule := fe.Tag()
		param := fe.Param()

		fields = append(fields, FieldError{
			Field:   jsonFieldName(out, fe.StructField()),
			Rule:    rule,
			Param:   param,
			Message: validationMessage(rule, param),
		})
	}

	return fields
}

// jsonFieldName maps a struct field name to its json tag on the bound
// request type, falling back to the raw name.
func jsonFieldName(out interface{}, structField string) string {
	t := reflect.TypeOf(out)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct || structField == "" {
		return structField
	}

	sf, ok := t.FieldByName(structField)

	if !ok {
		return structField
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")

	if name == "" || name == "-" {
		return sf.Name
	}

	return name
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
	case "eqfield":
		return "must match " + param
	case "phone":
		return "must be 8-20 digits, spaces, hyphens or parentheses"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
