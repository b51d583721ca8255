package resources

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opsforge/maas-mcp/pkg/apierror"
)

// Params is the validated name/value mapping for one request. Path parameters
// come from the URI pattern; query parameters are merged in as raw strings.
type Params map[string]string

// Get returns the value for name, or "" when absent.
func (p Params) Get(name string) string {
	return p[name]
}

// ExtractAndValidate matches uri against pattern, merges in the URI's query
// parameters and any caller-supplied raw parameters, then validates the result
// against the rules. Rule failures surface as a 400 invalid_parameters typed
// error naming the resource. Pure: same inputs always produce the same output.
func ExtractAndValidate(v *validator.Validate, uri, pattern string, rules map[string]any, raw map[string]string, label string) (Params, error) {
	params := Params{}
	for name, value := range raw {
		params[name] = value
	}
	for name, value := range queryParams(uri) {
		params[name] = value
	}
	// Path parameters are authoritative over anything the caller passed.
	for name, value := range Match(uri, pattern) {
		params[name] = value
	}

	if len(rules) == 0 {
		return params, nil
	}

	data := make(map[string]any, len(params))
	for name, value := range params {
		data[name] = value
	}
	// Absent parameters must still fail "required" rules.
	for name := range rules {
		if _, ok := data[name]; !ok {
			data[name] = ""
		}
	}

	if errs := v.ValidateMap(data, rules); len(errs) > 0 {
		details := make(map[string]any, len(errs))
		for field, fieldErr := range errs {
			details[field] = describeRuleError(fieldErr)
		}
		return nil, apierror.Newf(http.StatusBadRequest, apierror.CodeInvalidParameters,
			"Invalid parameters for %s request", label).
			WithDetails(map[string]any{"paramErrors": details})
	}

	return params, nil
}

// queryParams reads the query component of uri as flat string pairs. Repeated
// keys keep their first value.
func queryParams(uri string) map[string]string {
	idx := strings.IndexByte(uri, '?')
	if idx == -1 {
		return nil
	}
	values, err := url.ParseQuery(uri[idx+1:])
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for name, vs := range values {
		if len(vs) > 0 {
			out[name] = vs[0]
		}
	}
	return out
}

// QueryValues reads the query component of uri as url.Values for cache-key
// generation.
func QueryValues(uri string) url.Values {
	idx := strings.IndexByte(uri, '?')
	if idx == -1 {
		return nil
	}
	values, err := url.ParseQuery(uri[idx+1:])
	if err != nil {
		return nil
	}
	return values
}

// EntityValidator builds the payload validator for one entity schema: the
// payload must unmarshal into T and satisfy T's validate tags. Failures
// surface as 422 validation_error with structured sub-errors so a malformed
// upstream payload never propagates as a broken object.
func EntityValidator[T any](v *validator.Validate, label string) func(json.RawMessage) error {
	return func(payload json.RawMessage) error {
		var entity T
		if err := json.Unmarshal(payload, &entity); err != nil {
			return apierror.Newf(http.StatusUnprocessableEntity, apierror.CodeValidationError,
				"%s data validation failed: %v", label, err)
		}
		if err := v.Struct(entity); err != nil {
			var details []string
			var fieldErrs validator.ValidationErrors
			if ok := asValidationErrors(err, &fieldErrs); ok {
				for _, fieldErr := range fieldErrs {
					details = append(details, describeFieldError(fieldErr))
				}
			} else {
				details = append(details, err.Error())
			}
			return apierror.Newf(http.StatusUnprocessableEntity, apierror.CodeValidationError,
				"%s data validation failed: %s", label, strings.Join(details, "; ")).
				WithDetails(map[string]any{"schemaErrors": details})
		}
		return nil
	}
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = fieldErrs
	}
	return ok
}

func describeFieldError(err error) string {
	if fieldErr, ok := err.(validator.FieldError); ok {
		if fieldErr.Param() != "" {
			return fieldErr.Field() + " failed " + fieldErr.Tag() + "=" + fieldErr.Param()
		}
		return fieldErr.Field() + " failed " + fieldErr.Tag()
	}
	return err.Error()
}

// describeRuleError renders one ValidateMap result value, which is either a
// single field error or a collection of them.
func describeRuleError(value any) string {
	switch v := value.(type) {
	case validator.ValidationErrors:
		parts := make([]string, 0, len(v))
		for _, fieldErr := range v {
			parts = append(parts, describeFieldError(fieldErr))
		}
		return strings.Join(parts, "; ")
	case error:
		return describeFieldError(v)
	default:
		return "invalid value"
	}
}
