package server

import (
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
)

// Procedure answers calls to an rpc entry. It receives the raw
// parameter bytes sent by the caller and returns the raw result.
type Procedure func(parameter []byte) []byte

// runProcedure calls the procedure, turning a missing procedure or
// a panic into an empty result
func runProcedure(id uint16, procedure Procedure, parameter []byte) (result []byte) {
	if procedure == nil {
		return []byte{}
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.WithFields(logrus.Fields{
				logfield.Component: ntServer,
				logfield.Event:     "RPC-PANIC",
				logfield.EntryID:   id,
			}).Errorf("procedure panicked: %v", recovered)
			result = []byte{}
		}
	}()
	result = procedure(parameter)
	if result == nil {
		result = []byte{}
	}
	return result
}
