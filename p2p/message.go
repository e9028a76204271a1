package p2p

import "github.com/google/uuid"

// TerminateMessage is the reserved payload a peer sends before it hangs up.
// It is never delivered as a chat message.
const TerminateMessage = "TERMINATE"

// RPC represents one event read off a peer connection
type RPC struct {
	From       string    // Sender address
	PeerID     uuid.UUID // Identity of the connection it arrived on
	Payload    []byte    // Message content
	Disconnect bool      // Peer sent TerminateMessage or the read failed
}

// IsTerminate reports whether payload is exactly the disconnect sentinel.
func IsTerminate(payload []byte) bool {
	return string(payload) == TerminateMessage
}
