// ABOUTME: JSON request decoding and response helpers shared by the handlers

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// sendJSON writes v as a JSON response.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a {"message": ...} error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, messageResponse{Message: message})
}

type messageResponse struct {
	Message string `json:"message"`
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: %s", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}
