package transport

import (
	"context"
	"io"
	"net"
)

// Opener produces the byte stream the transport runs over. The transport
// owns the stream exclusively once opened. A factory abandoned after a
// connect timeout may still complete; its stream is closed unused.
type Opener interface {
	OpenStream(ctx context.Context) (io.ReadWriteCloser, HandshakeReport, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (io.ReadWriteCloser, HandshakeReport, error)

func (f OpenerFunc) OpenStream(ctx context.Context) (io.ReadWriteCloser, HandshakeReport, error) {
	return f(ctx)
}

// TCPOpener dials a TCP endpoint.
type TCPOpener struct {
	Address string
}

func (o *TCPOpener) OpenStream(ctx context.Context) (io.ReadWriteCloser, HandshakeReport, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", o.Address)
	if err != nil {
		return nil, HandshakeReport{}, err
	}

	report := HandshakeReport{
		RemoteHost:    o.Address,
		AddressFamily: "tcp",
		ProtocolLabel: "tcp",
	}
	if host, _, splitErr := net.SplitHostPort(o.Address); splitErr == nil {
		report.RemoteHost = host
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok && addr.IP.To4() == nil {
		report.AddressFamily = "tcp6"
	} else if ok {
		report.AddressFamily = "tcp4"
	}
	return conn, report, nil
}
