package transport

import (
	"github.com/danmuck/wirelink/internal/wire"
)

// Reserved message type codes for the handshake exchange. Application
// messages register above TypeCodeReservedMax.
const (
	TypeCodeClientHello uint64 = 1
	TypeCodeServerHello uint64 = 2

	TypeCodeReservedMax uint64 = 15
)

// ClientHello is the first framed message the client sends.
type ClientHello struct {
	ClientVersion    string
	FullProtocolHash []byte
}

func (ClientHello) TypeCode() uint64 { return TypeCodeClientHello }

func (m ClientHello) MarshalTagged(e *wire.Encoder) {
	e.Str(1, m.ClientVersion)
	e.Bytes(2, m.FullProtocolHash)
}

func (m *ClientHello) UnmarshalTagged(d *wire.Decoder) error {
	for {
		id, err := d.NextMember()
		if err != nil {
			return err
		}
		if id == 0 {
			return nil
		}
		switch id {
		case 1:
			m.ClientVersion, err = d.Str()
		case 2:
			m.FullProtocolHash, err = d.Bytes()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

func clientHelloSchema() *wire.Schema {
	return wire.StructSchema("ClientHello",
		wire.Field{ID: 1, Name: "ClientVersion", Schema: wire.StringSchema()},
		wire.Field{ID: 2, Name: "FullProtocolHash", Schema: wire.BytesSchema()},
	)
}

// ServerHello identifies the server build during the handshake.
type ServerHello struct {
	ServerVersion    string
	BuildNumber      int64
	FullProtocolHash []byte
	CommitID         string
}

func (ServerHello) TypeCode() uint64 { return TypeCodeServerHello }

func (m ServerHello) MarshalTagged(e *wire.Encoder) {
	e.Str(1, m.ServerVersion)
	e.Int(2, m.BuildNumber)
	e.Bytes(3, m.FullProtocolHash)
	e.Str(4, m.CommitID)
}

func (m *ServerHello) UnmarshalTagged(d *wire.Decoder) error {
	for {
		id, err := d.NextMember()
		if err != nil {
			return err
		}
		if id == 0 {
			return nil
		}
		switch id {
		case 1:
			m.ServerVersion, err = d.Str()
		case 2:
			m.BuildNumber, err = d.Int()
		case 3:
			m.FullProtocolHash, err = d.Bytes()
		case 4:
			m.CommitID, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

func serverHelloSchema() *wire.Schema {
	return wire.StructSchema("ServerHello",
		wire.Field{ID: 1, Name: "ServerVersion", Schema: wire.StringSchema()},
		wire.Field{ID: 2, Name: "BuildNumber", Schema: wire.IntSchema()},
		wire.Field{ID: 3, Name: "FullProtocolHash", Schema: wire.BytesSchema()},
		wire.Field{ID: 4, Name: "CommitID", Schema: wire.StringSchema()},
	)
}

// NewRegistry returns a resolver with the handshake messages
// pre-registered. Applications add their own message types on top.
func NewRegistry() *wire.Registry {
	reg := wire.NewRegistry()
	reg.Register(TypeCodeClientHello, func() wire.Message { return &ClientHello{} }, clientHelloSchema())
	reg.Register(TypeCodeServerHello, func() wire.Message { return &ServerHello{} }, serverHelloSchema())
	return reg
}
