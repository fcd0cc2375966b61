package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Rrens/flagr/internal/api/response"
)

var validate = validator.New()

// decode reads a JSON body into dst and validates it, writing a 400 and
// returning false on failure
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			response.BadRequest(w, fieldErrors(validationErrors))
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "field is required"
		case "email":
			out[e.Field()] = "invalid email format"
		case "min":
			out[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			out[e.Field()] = "must be at most " + e.Param() + " characters"
		default:
			out[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return out
}
