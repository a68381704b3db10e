package protocol

// HandshakeStatus represents the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeServerBusy      HandshakeStatus = 0x02
	HandshakeInvalidFormat   HandshakeStatus = 0x03 // Malformed handshake message
	HandshakeNotAuthorized   HandshakeStatus = 0x04 // Token rejected
	HandshakeInternalError   HandshakeStatus = 0x05 // Server error
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeNotAuthorized:
		return "NotAuthorized"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Compatible reports whether a peer speaking v can talk to this build.
// Minor versions are additive; majors must match.
func (v ProtocolVersion) Compatible() bool {
	return v.Major == CurrentVersion.Major
}

// ClientHello is sent by the native peer right after the WebSocket connects.
type ClientHello struct {
	Version  ProtocolVersion
	Token    string // Auth token, empty when the server has none configured
	Platform string // "iOS", "Android", "Qt", ...
	Width    uint16 // Screen width in points
	Height   uint16 // Screen height in points
}

// ServerHello is the server's response to ClientHello.
type ServerHello struct {
	Status     HandshakeStatus
	ContextID  string // Bridge context id assigned to the connection
	ServerTime uint64 // Server time in Unix milliseconds
	Flags      uint16 // Server capability flags
}

// Server capability flags.
const (
	ServerFlagHeartbeat uint16 = 0x0001 // Server sends pings
	ServerFlagDevkit    uint16 = 0x0002 // A devkit side channel is available
)

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteString(ch.Token)
	e.WriteString(ch.Platform)
	e.WriteUint16(ch.Width)
	e.WriteUint16(ch.Height)
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	ch := &ClientHello{}

	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ch.Version = ProtocolVersion{Major: major, Minor: minor}

	if ch.Token, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Platform, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.Width, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	if ch.Height, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	return ch, nil
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	e.WriteByte(byte(sh.Status))
	e.WriteString(sh.ContextID)
	e.WriteUint64(sh.ServerTime)
	e.WriteUint16(sh.Flags)
	return e.Bytes()
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	sh := &ServerHello{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HandshakeStatus(status)

	if sh.ContextID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if sh.ServerTime, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if sh.Flags, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	return sh, nil
}

// NewClientHello creates a new ClientHello with the current version.
func NewClientHello(token, platform string, width, height uint16) *ClientHello {
	return &ClientHello{
		Version:  CurrentVersion,
		Token:    token,
		Platform: platform,
		Width:    width,
		Height:   height,
	}
}

// NewServerHello creates a new successful ServerHello.
func NewServerHello(contextID string, serverTime uint64, flags uint16) *ServerHello {
	return &ServerHello{
		Status:     HandshakeOK,
		ContextID:  contextID,
		ServerTime: serverTime,
		Flags:      flags,
	}
}

// NewServerHelloError creates a ServerHello with an error status.
func NewServerHelloError(status HandshakeStatus) *ServerHello {
	return &ServerHello{Status: status}
}
