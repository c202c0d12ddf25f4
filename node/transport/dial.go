package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Dial connects to a NetworkTables server. ws:// and wss:// targets
// use a WebSocket with the NetworkTables subprotocol; tcp://host:port
// or a bare host[:port] use a plain TCP stream on DefaultPort unless
// a port is given.
func Dial(ctx context.Context, target string, timeout time.Duration) (PacketConn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return dialWebSocket(ctx, target, timeout)
	}
	address := strings.TrimPrefix(target, "tcp://")
	if schemeEnd := strings.Index(address, "://"); schemeEnd >= 0 {
		return nil, &UnsupportedSchemeError{Scheme: address[:schemeEnd]}
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", withDefaultPort(address))
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", target)
	}
	return NewStreamConn(conn), nil
}

func dialWebSocket(ctx context.Context, target string, timeout time.Duration) (PacketConn, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: timeout,
	}
	ws, response, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", target)
	}
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if _, accepted := offersNetworkTables([]string{ws.Subprotocol()}); !accepted {
		ws.Close()
		return nil, &SubprotocolNotNegotiatedError{Negotiated: ws.Subprotocol()}
	}
	return NewWebSocketConn(ws), nil
}

func withDefaultPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}
