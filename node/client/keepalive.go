package client

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
	"github.com/su225/networktables/node/transport"
	"github.com/su225/networktables/node/wire"
)

// keepAliveController sends a keep-alive on an otherwise idle
// connection every interval. A failing write closes the
// connection so that the reader notices the disconnect.
type keepAliveController struct {
	interval    time.Duration
	conn        transport.PacketConn
	stopChannel chan struct{}
	stopOnce    sync.Once
}

func startKeepAlive(conn transport.PacketConn, interval time.Duration) *keepAliveController {
	k := &keepAliveController{
		interval:    interval,
		conn:        conn,
		stopChannel: make(chan struct{}),
	}
	go k.commandServer()
	return k
}

func (k *keepAliveController) stop() {
	k.stopOnce.Do(func() { close(k.stopChannel) })
}

func (k *keepAliveController) commandServer() {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := k.conn.WritePackets(&wire.KeepAlive{}); err != nil {
				logrus.WithFields(logrus.Fields{
					logfield.ErrorReason: err.Error(),
					logfield.Component:   ntClient,
					logfield.Event:       "KEEP-ALIVE",
				}).Warnf("keep-alive failed, closing connection")
				k.conn.Close()
				return
			}
		case <-k.stopChannel:
			return
		}
	}
}
