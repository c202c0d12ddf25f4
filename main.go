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
package main

import (
	"encoding/json"
	"flag"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node"
	yaml "gopkg.in/yaml.v2"
)

const mainComponent = "MAIN"

func main() {
	setLogFormatter()

	nodeConfig, configErr := parseConfig()
	if configErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: configErr.Error(),
			logfield.Component:   mainComponent,
			logfield.Event:       "PARSE-CMD-ARGS",
		}).Errorf("error while parsing command-line arguments")
		os.Exit(1)
	}
	configValidationErrs := node.Validate(nodeConfig)
	if len(configValidationErrs) > 0 {
		for _, err := range configValidationErrs {
			logrus.WithFields(logrus.Fields{
				logfield.ErrorReason: err.Error(),
				logfield.Component:   mainComponent,
				logfield.Event:       "VALIDATE-CONFIG",
			}).Errorf("config validation error")
		}
		os.Exit(1)
	}
	setLogOutput(nodeConfig)

	logrus.WithFields(logrus.Fields{
		logfield.Component: mainComponent,
		logfield.Event:     "CONFIG",
	}).Infof("ServerName=%s, NTAddress=%s, APIPort=%d, AdminRPCPort=%d",
		nodeConfig.ServerName,
		nodeConfig.NTAddress,
		nodeConfig.APIPort,
		nodeConfig.AdminRPCPort)

	nodeContext := node.NewContext(nodeConfig)
	if startupErr := nodeContext.Start(); startupErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: startupErr.Error(),
			logfield.Component:   mainComponent,
			logfield.Event:       "START-CTX",
		}).Error("error while starting server")
		nodeContext.Destroy()
		os.Exit(-1)
	}
	setupGracefulShutdown(nodeContext)
}

// setLogFormatter sets up some options for formatting log entries.
// Colors are enabled and it is plain text formatter.
func setLogFormatter() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	logrus.SetLevel(logrus.InfoLevel)
}

// setLogOutput applies the configured level and, when a log file
// is configured, writes to a rotated file besides stderr
func setLogOutput(config *node.Config) {
	if len(config.LogLevel) > 0 {
		level, _ := logrus.ParseLevel(config.LogLevel)
		logrus.SetLevel(level)
	}
	if len(config.LogFilePath) == 0 {
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   config.LogFilePath,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     28,
	}))
}

// parseConfig parses command-line arguments and builds the configuration
// If there are any errors then it is returned
func parseConfig() (*node.Config, error) {
	configFile := flag.String("config-file", "",
		"JSON or YAML configuration file. When this is specified all other arguments are ignored")

	serverName := flag.String("name", "networktables",
		"Name of the server sent to clients during the handshake")

	ntAddress := flag.String("nt-address", node.DefaultNTAddress,
		"Address on which NetworkTables clients connect over TCP or WebSocket")

	apiPort := flag.Uint("api-port", node.DefaultAPIPort,
		"Port used by api-server")

	adminRPCPort := flag.Uint("admin-rpc-port", node.DefaultAdminRPCPort,
		"Port used by the admin rpc-server")

	persistFilePath := flag.String("persist-file", "",
		"File where persistent entries are kept across restarts. Empty disables persistence")

	persistInterval := flag.Int64("persist-interval", node.DefaultPersistIntervalInMillis,
		`Minimum interval in milliseconds between two writes of the persistent entries.
		 Changes within the interval are written together`)

	clientIdleTimeout := flag.Int64("client-idle-timeout", node.DefaultClientIdleTimeoutMillis,
		`Clients that send nothing, not even keep-alives, for this many milliseconds are
		 disconnected. Zero disables the timeout`)

	maxClients := flag.Int("max-clients", 0,
		"Maximum number of concurrently connected clients. Zero means unlimited")

	apiTimeout := flag.Int64("api-timeout", node.DefaultAPITimeoutInMillis,
		`API Timeout is the time within which the API call must complete. Otherwise
		 something like Gateway timed out or internal server error are returned`)

	apiRateLimit := flag.Float64("api-rate-limit", 0,
		"Requests per second accepted by the api-server. Zero means unlimited")

	apiRateBurst := flag.Int("api-rate-burst", 1,
		"Burst of requests accepted by the api-server above the rate limit")

	apiJWTSecret := flag.String("api-jwt-secret", "",
		"HMAC secret of bearer tokens required by the api-server. Empty disables authentication")

	procedureTimeout := flag.Int64("procedure-timeout", node.DefaultProcedureTimeoutInMillis,
		"Time in milliseconds a procedure call through the APIs may take")

	logFilePath := flag.String("log-file", "",
		"File to which logs are written in addition to stderr. It is rotated when it grows")

	logLevel := flag.String("log-level", node.DefaultLogLevel,
		"Log level (panic, fatal, error, warn, info, debug, trace)")

	flag.Parse()
	isConfigFileSpecified := len(*configFile) > 0
	if isConfigFileSpecified {
		return parseConfigurationFile(*configFile)
	}

	config := &node.Config{
		ServerName:                *serverName,
		NTAddress:                 *ntAddress,
		APIPort:                   uint32(*apiPort),
		AdminRPCPort:              uint32(*adminRPCPort),
		PersistFilePath:           *persistFilePath,
		PersistIntervalInMillis:   *persistInterval,
		ClientIdleTimeoutInMillis: *clientIdleTimeout,
		MaxClients:                *maxClients,
		APITimeoutInMillis:        *apiTimeout,
		APIRateLimit:              *apiRateLimit,
		APIRateBurst:              *apiRateBurst,
		APIJWTSecret:              *apiJWTSecret,
		ProcedureTimeoutInMillis:  *procedureTimeout,
		LogFilePath:               *logFilePath,
		LogLevel:                  *logLevel,
	}
	return config, nil
}

// parseConfigurationFile parses the configuration file and gets configuration.
// Fields missing from the file keep their default values. If there is any
// error then it is returned
func parseConfigurationFile(configFile string) (*node.Config, error) {
	configBytes, readErr := ioutil.ReadFile(configFile)
	if readErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: readErr.Error(),
			logfield.Component:   mainComponent,
			logfield.Event:       "READ-CONFIG-FILE",
		}).Error("error while reading config file")
		return nil, readErr
	}
	config := node.NewDefaultConfig()
	var unmarshalErr error
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		unmarshalErr = yaml.UnmarshalStrict(configBytes, config)
	default:
		unmarshalErr = json.Unmarshal(configBytes, config)
	}
	if unmarshalErr != nil {
		logrus.WithFields(logrus.Fields{
			logfield.ErrorReason: unmarshalErr.Error(),
			logfield.Component:   mainComponent,
			logfield.Event:       "PARSE-CONFIG-FILE",
		}).Error("error while parsing config file")
		return nil, errors.Wrapf(unmarshalErr, "parsing %s", configFile)
	}
	return config, nil
}

func setupGracefulShutdown(context *node.Context) {
	gracefulStop := make(chan os.Signal, 1)
	signal.Notify(gracefulStop, syscall.SIGTERM)
	signal.Notify(gracefulStop, syscall.SIGINT)

	receivedSignal := <-gracefulStop
	logrus.WithFields(logrus.Fields{
		logfield.Component: mainComponent,
		logfield.Event:     "SHUTDOWN",
	}).Infof("Received signal %s. Shutting down", receivedSignal)
	context.Destroy()
}
