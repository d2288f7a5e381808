package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/services"
)

const maxBodyBytes = 1_048_576

var errTrailingData = errors.New("request body must only contain a single JSON object")

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// bindRequest decodes and validates a request body. It writes the error
// response itself and reports whether the handler may continue.
func bindRequest(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		if errors.Is(err, errTrailingData) {
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return false
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID, ok
}
