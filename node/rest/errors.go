package rest

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
)

type errorReply struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &errorReply{Error: message})
}

// statusOf maps data store errors to HTTP status codes
func statusOf(err error) int {
	switch errors.Cause(err).(type) {
	case *entry.EntryNotFoundError, *server.ProcedureNotFoundError:
		return http.StatusNotFound
	case *entry.EntryAlreadyExistsError:
		return http.StatusConflict
	case *entry.TypeMismatchError, *entry.InvalidEntryTypeError,
		*entry.InvalidValueError, *datastore.InvalidEntryDataError:
		return http.StatusBadRequest
	case *entry.TableFullError:
		return http.StatusInsufficientStorage
	}
	if errors.Cause(err) == context.DeadlineExceeded {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeDataStoreError(w http.ResponseWriter, event string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: err.Error(),
			logfield.Component:   apiServer,
			logfield.Event:       event,
		}).Errorf("error while accessing the data store")
	}
	writeError(w, status, err.Error())
}
