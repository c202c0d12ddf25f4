package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/entry"
	"github.com/tidwall/gjson"
)

// maxBodySize bounds request bodies; raw values travel as base64
const maxBodySize = 1 << 20

type createEntryReply struct {
	ID uint16 `json:"id"`
}

type procedureReply struct {
	Result []byte `json:"result"`
}

type healthReply struct {
	Status string `json:"status"`
}

func (s *APIServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &healthReply{Status: "ok"})
}

// listEntries returns the entries in name order. The prefix query
// parameter narrows the list, name looks up a single entry.
func (s *APIServer) listEntries(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "LIST-ENTRIES", "list entries", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if name, byName := query["name"]; byName && len(name) > 0 {
			e, err := s.DataStore.GetEntryByName(name[0])
			if err != nil {
				writeDataStoreError(w, "GET-ENTRY-BY-NAME", err)
				return
			}
			writeJSON(w, http.StatusOK, &e)
			return
		}
		entries, err := s.DataStore.ListEntries(query.Get("prefix"))
		if err != nil {
			writeDataStoreError(w, "LIST-ENTRIES", err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})
}

func (s *APIServer) getEntry(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "GET-ENTRY", "get entry", func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		e, err := s.DataStore.GetEntry(id)
		if err != nil {
			writeDataStoreError(w, "GET-ENTRY", err)
			return
		}
		writeJSON(w, http.StatusOK, &e)
	})
}

// createEntry expects {"name": ..., "type": ..., "flags": ..., "value": ...}
// and answers 201 with the assigned ID
func (s *APIServer) createEntry(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "CREATE-ENTRY", "create entry", func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		name := gjson.GetBytes(body, "name")
		if name.Type != gjson.String || name.String() == "" {
			writeError(w, http.StatusBadRequest, "name must be a non-empty string")
			return
		}
		entryType, typeErr := entry.ParseEntryType(gjson.GetBytes(body, "type").String())
		if typeErr != nil {
			writeError(w, http.StatusBadRequest, typeErr.Error())
			return
		}
		value, valueErr := entry.ValueFromJSON(entryType, gjson.GetBytes(body, "value"))
		if valueErr != nil {
			writeError(w, http.StatusBadRequest, valueErr.Error())
			return
		}
		var flags uint8
		if flagsField := gjson.GetBytes(body, "flags"); flagsField.Exists() {
			if flags, ok = parseFlags(w, flagsField); !ok {
				return
			}
		}
		id, createErr := s.DataStore.CreateEntry(entry.NewEntryData(name.String(), flags, value))
		if createErr != nil {
			writeDataStoreError(w, "CREATE-ENTRY", createErr)
			return
		}
		writeJSON(w, http.StatusCreated, &createEntryReply{ID: id})
	})
}

// updateValue expects {"value": ...} matching the entry's type
func (s *APIServer) updateValue(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "UPDATE-VALUE", "update value", func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		current, getErr := s.DataStore.GetEntry(id)
		if getErr != nil {
			writeDataStoreError(w, "UPDATE-VALUE", getErr)
			return
		}
		value, valueErr := entry.ValueFromJSON(current.EntryType(), gjson.GetBytes(body, "value"))
		if valueErr != nil {
			writeError(w, http.StatusBadRequest, valueErr.Error())
			return
		}
		updated, updateErr := s.DataStore.UpdateEntry(id, value)
		if updateErr != nil {
			writeDataStoreError(w, "UPDATE-VALUE", updateErr)
			return
		}
		writeJSON(w, http.StatusOK, &updated)
	})
}

// updateFlags expects {"flags": 0-255}
func (s *APIServer) updateFlags(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "UPDATE-FLAGS", "update flags", func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		flags, ok := parseFlags(w, gjson.GetBytes(body, "flags"))
		if !ok {
			return
		}
		updated, updateErr := s.DataStore.UpdateEntryFlags(id, flags)
		if updateErr != nil {
			writeDataStoreError(w, "UPDATE-FLAGS", updateErr)
			return
		}
		writeJSON(w, http.StatusOK, &updated)
	})
}

func (s *APIServer) deleteEntry(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "DELETE-ENTRY", "delete entry", func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		if err := s.DataStore.DeleteEntry(id); err != nil {
			writeDataStoreError(w, "DELETE-ENTRY", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *APIServer) clearEntries(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "CLEAR-ENTRIES", "clear entries", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DataStore.ClearEntries(); err != nil {
			writeDataStoreError(w, "CLEAR-ENTRIES", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// callProcedure expects {"parameter": base64} and answers with
// {"result": base64}. The call is bounded by APITimeout.
func (s *APIServer) callProcedure(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "CALL-PROCEDURE", "call procedure", func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		var parameter []byte
		if encoded := gjson.GetBytes(body, "parameter"); encoded.Exists() {
			decoded, decodeErr := base64.StdEncoding.DecodeString(encoded.String())
			if encoded.Type != gjson.String || decodeErr != nil {
				writeError(w, http.StatusBadRequest, "parameter must be base64")
				return
			}
			parameter = decoded
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.apiTimeout())
		defer cancel()
		result, callErr := s.DataStore.CallProcedure(ctx, id, parameter)
		if callErr != nil {
			writeDataStoreError(w, "CALL-PROCEDURE", callErr)
			return
		}
		writeJSON(w, http.StatusOK, &procedureReply{Result: result})
	})
}

func (s *APIServer) listClients(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, "LIST-CLIENTS", "list clients", func(w http.ResponseWriter, r *http.Request) {
		clients, err := s.DataStore.Clients()
		if err != nil {
			writeDataStoreError(w, "LIST-CLIENTS", err)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	})
}

// handleRequest logs certain attributes of the request and
// then hands it to the handler
func (s *APIServer) handleRequest(
	w http.ResponseWriter, r *http.Request,
	eventName, requestName string,
	handlerFunc func(w http.ResponseWriter, r *http.Request),
) {
	logrus.WithFields(logrus.Fields{
		logfield.Component:          apiServer,
		logfield.Event:              eventName,
		logfield.RequesterIPAddress: r.RemoteAddr,
		logfield.RESTMethod:         r.Method,
		logfield.RequestURI:         r.RequestURI,
	}).Infof("received %s request", requestName)
	handlerFunc(w, r)
}

func entryID(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	id, parseErr := strconv.ParseUint(mux.Vars(r)["id"], 10, 16)
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, "entry id must be between 0 and 65535")
		return 0, false
	}
	return uint16(id), true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()
	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if readErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: readErr.Error(),
			logfield.Component:   apiServer,
			logfield.Event:       "READ-BODY",
		}).Errorf("error while reading request body")
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return nil, false
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return nil, false
	}
	return body, true
}

func parseFlags(w http.ResponseWriter, field gjson.Result) (uint8, bool) {
	if field.Type != gjson.Number || field.Num < 0 || field.Num > 255 || field.Num != float64(int64(field.Num)) {
		writeError(w, http.StatusBadRequest, "flags must be an integer between 0 and 255")
		return 0, false
	}
	return uint8(field.Num), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	marshaled, marshalErr := json.Marshal(v)
	if marshalErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: marshalErr.Error(),
			logfield.Component:   apiServer,
			logfield.Event:       "MARSHAL-REPLY",
		}).Errorf("error while marshaling reply")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(marshaled)
}
