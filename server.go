package main

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sync"

	"github.com/utkarshgupta2804/p2p-chat/p2p"
)

// ChatServer is a chat node: it accepts peers through its transport, dials
// peers on request and keeps every live connection in a Registry.
type ChatServer struct {
	ChatServerOpts

	registry *Registry
	out      *syncWriter

	quitch   chan struct{} // Channel for graceful shutdown
	stopOnce sync.Once
	done     chan struct{} // Closed when loop returns
}

// NewChatServer creates a new ChatServer instance. The transport's OnPeer
// must be pointed at the server's OnPeer before Start.
func NewChatServer(opts ChatServerOpts) *ChatServer {
	opts.applyDefaults()

	return &ChatServer{
		ChatServerOpts: opts,
		registry:       NewRegistry(opts.MaxConnections),
		out:            &syncWriter{w: opts.Out},
		quitch:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start begins listening and consuming peer traffic in the background
func (s *ChatServer) Start() error {
	if err := s.Transport.ListenAndAccept(); err != nil {
		return err
	}

	go s.loop()

	return nil
}

// Stop closes the transport and ends the consumer loop. It does not touch
// registered connections; see Exit.
func (s *ChatServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitch)
		if err := s.Transport.Close(); err != nil {
			s.Logger.Printf("closing transport: %s", err)
		}
	})
}

// OnPeer admits a newly established connection into the registry
func (s *ChatServer) OnPeer(p p2p.Peer) error {
	if _, err := s.registry.Insert(p); err != nil {
		return err
	}

	if !p.Outbound() {
		s.printf("\nNew connection from Chat Room %s\n", formatAddr(p.RemoteAddrPort()))
	}

	return nil
}

// loop is the main event loop for the chat server
func (s *ChatServer) loop() {
	defer close(s.done)

	for {
		select {
		case rpc := <-s.Transport.Consume():
			s.handleRPC(rpc)

		case <-s.quitch:
			return
		}
	}
}

func (s *ChatServer) handleRPC(rpc p2p.RPC) {
	if rpc.Disconnect {
		e, ok := s.registry.Remove(rpc.PeerID)
		if !ok {
			// Already terminated from this side.
			return
		}
		s.printf("The Chat Room at %s has disconnected.\n", formatAddr(e.Addr()))
		return
	}

	from := rpc.From
	if ap, err := netip.ParseAddrPort(rpc.From); err == nil {
		from = formatAddr(ap)
	}
	s.printf("*---------------------- NEW MESSAGE! -------------------\n"+
		"* @from: Chat Room %s\n"+
		"* @message: %s\n"+
		"*-------------------------------------------------------\n",
		from, rpc.Payload)
}

// Connect opens an outbound connection to ip:port and registers it
func (s *ChatServer) Connect(ip string, port int) (PeerInfo, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return PeerInfo{}, fmt.Errorf("%w: invalid IP address %q", ErrConnectFailed, ip)
	}
	if port < 1 || port > 65535 {
		return PeerInfo{}, fmt.Errorf("%w: invalid port %d", ErrConnectFailed, port)
	}
	target := netip.AddrPortFrom(addr.Unmap(), uint16(port))

	if s.registry.Full() {
		return PeerInfo{}, ErrRegistryFull
	}
	if s.registry.Contains(target) {
		return PeerInfo{}, fmt.Errorf("%w: %s", ErrDuplicateConnection, formatAddr(target))
	}

	// The checks above are repeated by Insert once the dial completes, in
	// case an inbound peer took the last slot meanwhile.
	peer, err := s.Transport.Dial(target.String())
	if err != nil {
		if errors.Is(err, ErrRegistryFull) || errors.Is(err, ErrDuplicateConnection) {
			return PeerInfo{}, err
		}
		return PeerInfo{}, fmt.Errorf("%w: %s", ErrConnectFailed, err)
	}

	return PeerInfo{
		ID:       peer.ID(),
		Addr:     peer.RemoteAddrPort(),
		Outbound: true,
	}, nil
}

// Send writes message verbatim to the connection with the 1-based id
func (s *ChatServer) Send(id int, message string) (PeerInfo, error) {
	if p2p.IsTerminate([]byte(message)) {
		return PeerInfo{}, ErrReservedPayload
	}

	var info PeerInfo
	err := s.registry.Do(id-1, func(e *Entry) error {
		if err := e.Peer.Send([]byte(message)); err != nil {
			return fmt.Errorf("%w: %s", ErrSendFailed, err)
		}
		info = entryInfo(e)
		return nil
	})
	if errors.Is(err, ErrInvalidPosition) {
		return PeerInfo{}, ErrInvalidID
	}
	return info, err
}

// Terminate notifies the peer with the 1-based id and removes it. A failed
// notification does not prevent the removal.
func (s *ChatServer) Terminate(id int) (PeerInfo, error) {
	e, err := s.registry.RemoveAtFunc(id-1, func(e *Entry) {
		if err := e.Peer.Send([]byte(p2p.TerminateMessage)); err != nil {
			s.Logger.Printf("notifying %s of disconnect: %s", e.Addr(), err)
		}
	})
	if err != nil {
		return PeerInfo{}, ErrInvalidID
	}

	info := entryInfo(e)
	info.Position = id - 1
	return info, nil
}

// List returns the current connections in registry order
func (s *ChatServer) List() []PeerInfo {
	return s.registry.Snapshot()
}

// Exit notifies and closes every connection, then shuts the server down
func (s *ChatServer) Exit() {
	for _, e := range s.registry.Drain() {
		if err := e.Peer.Send([]byte(p2p.TerminateMessage)); err != nil {
			s.Logger.Printf("notifying %s of disconnect: %s", e.Addr(), err)
		}
		e.Peer.Close()
	}

	s.Stop()
}

// ListenPort returns the port the transport is bound to
func (s *ChatServer) ListenPort() uint16 {
	ap, err := netip.ParseAddrPort(s.Transport.Addr())
	if err != nil {
		return 0
	}
	return ap.Port()
}

func (s *ChatServer) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func entryInfo(e *Entry) PeerInfo {
	return PeerInfo{
		Position: e.Position,
		ID:       e.ID(),
		Addr:     e.Addr(),
		Outbound: e.Peer.Outbound(),
	}
}

func formatAddr(ap netip.AddrPort) string {
	return fmt.Sprintf("[IP <%s> : Port <%d>]", ap.Addr(), ap.Port())
}

// syncWriter serializes writes coming from the consumer loop and the
// command line.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
