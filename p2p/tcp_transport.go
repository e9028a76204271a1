package p2p

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"

	"github.com/google/uuid"
)

// TCPPeer represents a remote node over a TCP connection
type TCPPeer struct {
	net.Conn            // Embedded net.Conn interface
	id        uuid.UUID // Assigned on creation, never reused
	outbound  bool      // True if we dialed the connection, false if we accepted it
	addr      netip.AddrPort
	closeOnce sync.Once
	closeErr  error
}

// NewTCPPeer creates a new TCPPeer instance
func NewTCPPeer(conn net.Conn, outbound bool) *TCPPeer {
	return &TCPPeer{
		Conn:     conn,
		id:       uuid.New(),
		outbound: outbound,
		addr:     addrPortOf(conn.RemoteAddr()),
	}
}

func addrPortOf(addr net.Addr) netip.AddrPort {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		ap := tcp.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

func (p *TCPPeer) ID() uuid.UUID { return p.id }

func (p *TCPPeer) Outbound() bool { return p.outbound }

func (p *TCPPeer) RemoteAddrPort() netip.AddrPort { return p.addr }

// Close closes the underlying connection. Only the first call reaches the
// socket; later calls return the same result.
func (p *TCPPeer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.Conn.Close()
	})
	return p.closeErr
}

// Send writes data to the peer connection
func (p *TCPPeer) Send(b []byte) error {
	_, err := p.Conn.Write(b)
	return err
}

// TCPTransportOpts contains configuration options for TCPTransport
type TCPTransportOpts struct {
	ListenAddr    string           // Address to listen on
	HandshakeFunc HandshakeFunc    // Function to perform handshake
	Decoder       Decoder          // Message decoder
	OnPeer        func(Peer) error // Admission callback; an error rejects the peer
	Logger        *log.Logger
}

// TCPTransport implements the Transport interface using TCP
type TCPTransport struct {
	TCPTransportOpts              // Embedded options
	listener         net.Listener // TCP listener
	rpcch            chan RPC     // Channel for incoming RPC messages
	closech          chan struct{}
	closeOnce        sync.Once
}

// NewTCPTransport creates a new TCPTransport instance
func NewTCPTransport(opts TCPTransportOpts) *TCPTransport {
	if opts.HandshakeFunc == nil {
		opts.HandshakeFunc = NOPHandshakeFunc
	}
	if opts.Decoder == nil {
		opts.Decoder = DefaultDecoder{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &TCPTransport{
		TCPTransportOpts: opts,
		rpcch:            make(chan RPC, 1024), // Buffered channel for RPCs
		closech:          make(chan struct{}),
	}
}

// Addr returns the listen address. Once listening it is the bound address,
// so a ":0" request reports the port the OS picked.
func (t *TCPTransport) Addr() string {
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.ListenAddr
}

// Consume returns a read-only channel for incoming RPC messages
func (t *TCPTransport) Consume() <-chan RPC {
	return t.rpcch
}

// Close shuts down the transport. Receiver loops still blocked on a read
// stop delivering once the transport is closed.
func (t *TCPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closech)
		if t.listener != nil {
			err = t.listener.Close()
		}
	})
	return err
}

// Dial connects to a remote peer and admits it. The receiver loop is only
// started when admission succeeds.
func (t *TCPTransport) Dial(addr string) (Peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	peer, err := t.admit(conn, true)
	if err != nil {
		return nil, err
	}

	go t.handleConn(peer) // Handle outbound connection

	return peer, nil
}

// ListenAndAccept starts listening for incoming connections
func (t *TCPTransport) ListenAndAccept() error {
	var err error

	t.listener, err = net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return err
	}

	go t.startAcceptLoop() // Start accepting connections in a goroutine

	t.Logger.Printf("TCP transport listening on: %s\n", t.listener.Addr())

	return nil
}

// startAcceptLoop continuously accepts new connections
func (t *TCPTransport) startAcceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}

		if err != nil {
			t.Logger.Printf("TCP accept error: %s\n", err)
			continue
		}

		peer, err := t.admit(conn, false)
		if err != nil {
			t.Logger.Printf("rejected connection from %s: %s\n", conn.RemoteAddr(), err)
			continue
		}

		go t.handleConn(peer) // Handle inbound connection
	}
}

// admit wraps conn, runs the handshake and the OnPeer callback. On any
// failure the connection is closed before returning.
func (t *TCPTransport) admit(conn net.Conn, outbound bool) (*TCPPeer, error) {
	peer := NewTCPPeer(conn, outbound)

	if err := t.HandshakeFunc(peer); err != nil {
		peer.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	if t.OnPeer != nil {
		if err := t.OnPeer(peer); err != nil {
			peer.Close()
			return nil, err
		}
	}

	return peer, nil
}

// handleConn is the receiver loop for one admitted connection. It ends after
// delivering a single Disconnect RPC, either because the peer sent
// TerminateMessage or because the read failed.
func (t *TCPTransport) handleConn(peer *TCPPeer) {
	from := peer.RemoteAddrPort().String()

	for {
		rpc := RPC{}
		err := t.Decoder.Decode(peer, &rpc)
		if err != nil {
			rpc.Disconnect = true
			rpc.Payload = nil
		}

		rpc.From = from // Set message source
		rpc.PeerID = peer.ID()

		select {
		case t.rpcch <- rpc: // Send RPC to consumer channel
		case <-t.closech:
			return
		}

		if rpc.Disconnect {
			if err != nil {
				t.Logger.Printf("dropping peer connection %s: %s\n", from, err)
			}
			return
		}
	}
}
