// Copyright (c) 2019 Suchith J N

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:

// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package node

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/common"
	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/persist"
	"github.com/su225/networktables/node/rest"
	"github.com/su225/networktables/node/rpc/server"
	ntserver "github.com/su225/networktables/node/server"
)

var context = "CONTEXT"

// ContextLifecycleError represents the errors that occur during lifecycle
// events of the node context. This can be thought of as the consolidated
// error message derived from errors in various components
type ContextLifecycleError struct {
	Errors []error
}

func (e *ContextLifecycleError) Error() string {
	errorMessages := make([]string, 0)
	for _, err := range e.Errors {
		errorMessages = append(errorMessages, err.Error())
	}
	return strings.Join(errorMessages, "\n")
}

// Context represents the holder for all the components
// running as part of this NetworkTables server.
type Context struct {
	// EntryPersistence keeps persistent entries across restarts.
	// It is nil when no persist file is configured
	EntryPersistence persist.EntryPersistence

	// NTServer accepts NetworkTables clients over TCP and
	// WebSocket and owns the entry table
	NTServer *ntserver.RealServer

	// DataStore is the API through which operators change the
	// entry table. Changes reach every connected client
	DataStore datastore.DataStore

	// APIServer serves the REST API on top of DataStore
	APIServer *rest.APIServer

	// AdminRPCServer serves the gRPC admin API on top of DataStore
	AdminRPCServer *server.RealAdminRPCServer
}

// NewContext creates a new node context and returns it
// It wires up all the components before returning.
func NewContext(config *Config) *Context {
	var entryPersistence persist.EntryPersistence
	if len(config.PersistFilePath) > 0 {
		entryPersistence = persist.NewFileBasedEntryPersistence(config.PersistFilePath)
	}
	ntServer := ntserver.NewRealServer(
		config.NTAddress,
		config.ServerName,
		config.MaxClients,
		time.Duration(config.ClientIdleTimeoutInMillis)*time.Millisecond,
		time.Duration(config.PersistIntervalInMillis)*time.Millisecond,
		entryPersistence,
	)
	dataStore := datastore.NewNetworkTablesStore(
		ntServer,
		time.Duration(config.ProcedureTimeoutInMillis)*time.Millisecond,
	)
	apiServer := rest.NewAPIServer(
		config.APIPort,
		config.APITimeoutInMillis,
		config.APIRateLimit,
		config.APIRateBurst,
		config.APIJWTSecret,
		dataStore,
	)
	adminRPCServer := server.NewRealAdminRPCServer(config.AdminRPCPort, dataStore)

	return &Context{
		EntryPersistence: entryPersistence,
		NTServer:         ntServer,
		DataStore:        dataStore,
		APIServer:        apiServer,
		AdminRPCServer:   adminRPCServer,
	}
}

// components returns the components in the order they are started
func (ctx *Context) components() []common.ComponentLifecycle {
	return []common.ComponentLifecycle{
		ctx.NTServer,
		ctx.APIServer,
		ctx.AdminRPCServer,
	}
}

// Start starts various node context components. If the
// operation is not successful then it returns error
func (ctx *Context) Start() error {
	for _, component := range ctx.components() {
		if startErr := component.Start(); startErr != nil {
			return startErr
		}
	}
	return nil
}

// Destroy destroys all components in the reverse order of
// starting so that the API servers stop taking requests before
// the entry table goes away and the persistent entries are
// written one last time.
func (ctx *Context) Destroy() error {
	contextErrorMessage := &ContextLifecycleError{Errors: []error{}}
	components := ctx.components()
	for i := len(components) - 1; i >= 0; i-- {
		if destroyErr := components[i].Destroy(); destroyErr != nil {
			contextErrorMessage.Errors = append(contextErrorMessage.Errors, destroyErr)
		}
	}
	if len(contextErrorMessage.Errors) > 0 {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: contextErrorMessage.Error(),
			logfield.Component:   context,
			logfield.Event:       "DESTROY",
		}).Errorln("error while destroying components")
		return contextErrorMessage
	}
	return nil
}
