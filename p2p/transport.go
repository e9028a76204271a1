package p2p

import (
	"net"
	"net/netip"

	"github.com/google/uuid"
)

// Peer represents a remote node in the network
type Peer interface {
	net.Conn                        // Embedded connection interface
	ID() uuid.UUID                  // Stable identity for the connection's lifetime
	Outbound() bool                 // True if we dialed, false if we accepted
	RemoteAddrPort() netip.AddrPort // (IP, port) of the far end
	Send([]byte) error              // Send data to peer
}

// Transport handles communication between nodes
type Transport interface {
	Addr() string              // Listening address
	Dial(string) (Peer, error) // Connect to remote address and admit it
	ListenAndAccept() error    // Start listening
	Consume() <-chan RPC       // Channel for incoming messages
	Close() error              // Shutdown transport
}
