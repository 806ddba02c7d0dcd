package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Request bodies are small json documents, anything larger is rejected.
const maxRequestBodyBytes = 1 << 20

// Decodes the json body of r into dest. On failure a 400 is written and false returned.
func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			http.Error(w, "request body is required", http.StatusBadRequest)
		case errors.As(err, &tooLarge):
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		default:
			slog.Info("unable to parse request body", "path", r.URL.Path, "error", err)
			http.Error(w, fmt.Sprintf("error parsing request body: %v", err), http.StatusBadRequest)
		}
		return false
	}
	return true
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	encoded, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(encoded, '\n')); err != nil {
		slog.Warn("error writing response body", "error", err)
	}
}

func WriteSuccess(w http.ResponseWriter) {
	WriteJsonResponse(w, struct{}{})
}

func URLParam(r *http.Request, key string) (string, error) {
	if param := chi.URLParam(r, key); param != "" {
		return param, nil
	}
	return "", fmt.Errorf("missing {%v} url parameter", key)
}

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	param, err := URLParam(r, key)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid '%v' provided: %w", param, err)
	}
	return id, nil
}

// Returns nil if the query param is absent.
func QueryParamInt(r *http.Request, key string) (*int, error) {
	param := r.URL.Query().Get(key)
	if param == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(param)
	if err != nil {
		return nil, fmt.Errorf("invalid integer '%v' for query param %v: %w", param, key, err)
	}
	return &value, nil
}
