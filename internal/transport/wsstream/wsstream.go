// Package wsstream opens websocket-backed byte streams for the
// transport. The websocket connection is bridged to a net.Conn so the
// transport's packet framing runs unchanged on top of binary messages.
package wsstream

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"nhooyr.io/websocket"

	"github.com/danmuck/wirelink/internal/transport"
)

// Opener dials a ws:// or wss:// URL and satisfies transport.Opener.
type Opener struct {
	URL string
}

func (o *Opener) OpenStream(ctx context.Context) (io.ReadWriteCloser, transport.HandshakeReport, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, transport.HandshakeReport{}, fmt.Errorf("wsstream: parse url: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, o.URL, nil)
	if err != nil {
		return nil, transport.HandshakeReport{}, fmt.Errorf("wsstream: dial %s: %w", o.URL, err)
	}

	// NetConn lifetime is governed by the transport closing the stream,
	// not by the dial context.
	stream := websocket.NetConn(context.Background(), conn, websocket.MessageBinary)
	report := transport.HandshakeReport{
		RemoteHost:    u.Hostname(),
		AddressFamily: "ws",
		ProtocolLabel: u.Scheme,
	}
	return stream, report, nil
}
