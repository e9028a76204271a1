package p2p

import (
	"io"
)

// MaxPayloadSize is the largest payload a single read delivers
const MaxPayloadSize = 1024

// Decoder decodes one payload from a reader
type Decoder interface {
	Decode(io.Reader, *RPC) error
}

// DefaultDecoder treats every read as exactly one message. There is no
// framing on the wire, so a payload is whatever one read returns.
type DefaultDecoder struct{}

func (dec DefaultDecoder) Decode(r io.Reader, msg *RPC) error {
	buf := make([]byte, MaxPayloadSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	msg.Payload = buf[:n]
	msg.Disconnect = IsTerminate(msg.Payload)

	return nil
}
