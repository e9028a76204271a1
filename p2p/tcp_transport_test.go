package p2p

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, onPeer func(Peer) error) *TCPTransport {
	t.Helper()

	tr := NewTCPTransport(TCPTransportOpts{
		ListenAddr: "127.0.0.1:0",
		OnPeer:     onPeer,
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, tr.ListenAndAccept())
	t.Cleanup(func() { tr.Close() })

	return tr
}

func recvRPC(t *testing.T, tr *TCPTransport) RPC {
	t.Helper()

	select {
	case rpc := <-tr.Consume():
		return rpc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rpc")
	}
	return RPC{}
}

func TestDefaultDecoder(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		payload    string
		disconnect bool
	}{
		{name: "chat message", input: "hello there", payload: "hello there"},
		{name: "sentinel", input: TerminateMessage, payload: TerminateMessage, disconnect: true},
		{name: "sentinel is case sensitive", input: "terminate", payload: "terminate"},
		{name: "sentinel prefix", input: "TERMINATE now", payload: "TERMINATE now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rpc RPC
			require.NoError(t, DefaultDecoder{}.Decode(bytes.NewReader([]byte(tt.input)), &rpc))
			assert.Equal(t, tt.payload, string(rpc.Payload))
			assert.Equal(t, tt.disconnect, rpc.Disconnect)
		})
	}

	t.Run("empty read is an error", func(t *testing.T) {
		var rpc RPC
		err := DefaultDecoder{}.Decode(bytes.NewReader(nil), &rpc)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestTCPPeerCloseOnce(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	p := NewTCPPeer(c1, true)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.True(t, p.Outbound())
	assert.NotEqual(t, p.ID(), NewTCPPeer(c2, false).ID())
}

func TestTCPTransportDeliversPayloads(t *testing.T) {
	tr := newTestTransport(t, nil)

	conn, err := net.Dial("tcp", tr.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	rpc := recvRPC(t, tr)
	assert.Equal(t, "hello", string(rpc.Payload))
	assert.False(t, rpc.Disconnect)
	assert.Equal(t, conn.LocalAddr().String(), rpc.From)

	_, err = conn.Write([]byte(TerminateMessage))
	require.NoError(t, err)

	rpc = recvRPC(t, tr)
	assert.True(t, rpc.Disconnect)
	assert.Equal(t, TerminateMessage, string(rpc.Payload))
}

func TestTCPTransportReadErrorIsDisconnect(t *testing.T) {
	var (
		mu    sync.Mutex
		peers []Peer
	)
	tr := newTestTransport(t, func(p Peer) error {
		mu.Lock()
		defer mu.Unlock()
		peers = append(peers, p)
		return nil
	})

	conn, err := net.Dial("tcp", tr.Addr())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(peers) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	rpc := recvRPC(t, tr)
	assert.True(t, rpc.Disconnect)
	assert.Nil(t, rpc.Payload)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, peers[0].ID(), rpc.PeerID)
	assert.False(t, peers[0].Outbound())
}

func TestTCPTransportOnPeerRejects(t *testing.T) {
	tr := newTestTransport(t, func(Peer) error {
		return errors.New("full")
	})

	conn, err := net.Dial("tcp", tr.Addr())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	select {
	case rpc := <-tr.Consume():
		t.Fatalf("unexpected rpc from rejected peer: %+v", rpc)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTCPTransportDial(t *testing.T) {
	accepted := make(chan Peer, 1)
	remote := newTestTransport(t, func(p Peer) error {
		accepted <- p
		return nil
	})
	local := newTestTransport(t, nil)

	peer, err := local.Dial(remote.Addr())
	require.NoError(t, err)
	assert.True(t, peer.Outbound())
	assert.Equal(t, remote.Addr(), peer.RemoteAddrPort().String())

	var in Peer
	select {
	case in = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("remote never admitted the connection")
	}
	assert.False(t, in.Outbound())
	assert.Equal(t, peer.LocalAddr().String(), in.RemoteAddrPort().String())

	require.NoError(t, peer.Send([]byte("ping")))
	rpc := recvRPC(t, remote)
	assert.Equal(t, "ping", string(rpc.Payload))
	assert.Equal(t, in.ID(), rpc.PeerID)
}

func TestTCPTransportDialRejected(t *testing.T) {
	remote := newTestTransport(t, nil)
	local := newTestTransport(t, func(Peer) error {
		return errors.New("no room")
	})

	_, err := local.Dial(remote.Addr())
	assert.EqualError(t, err, "no room")
}
