package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/planner/storage"
	"trip_planner/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// Maps errors returned by the schema getters to a response code.
func schemaError(err error) error {
	switch {
	case errors.Is(err, schema.ErrUserNotFound),
		errors.Is(err, schema.ErrTripNotFound),
		errors.Is(err, schema.ErrCollaboratorNotFound),
		errors.Is(err, schema.ErrMarkerNotFound),
		errors.Is(err, schema.ErrTourNotFound),
		errors.Is(err, schema.ErrRouteNotFound),
		errors.Is(err, schema.ErrInvitationNotFound):
		return CodedError(err, http.StatusNotFound)
	}
	return CodedError(err, http.StatusInternalServerError)
}

func invalid(err error) error {
	return CodedError(err, http.StatusUnprocessableEntity)
}

func dbFailure(msg string, err error, args ...any) error {
	slog.Error(msg, append(args, "error", err)...)
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}

func currentUser(w http.ResponseWriter, r *http.Request) (schema.User, bool) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return schema.User{}, false
	}
	return user, true
}

func urlParamUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := utils.URLParamUUID(r, key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func checkDiskUsage(store storage.Storage, minFreeBytes uint64) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	if stats.FreeBytes < minFreeBytes {
		oneMib := uint64(1024 * 1024)
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		delta := (minFreeBytes - stats.FreeBytes) / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib, please clear %d Mib", used, total, delta), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(store storage.Storage, minFreeBytes uint64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store, minFreeBytes); err != nil {
				slog.Error(err.Error())
				http.Error(w, err.Error(), GetResponseCode(err))
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(handler)
	}
}

func countRows(txn *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var count int64
	result := txn.Model(model).Where(query, args...).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
