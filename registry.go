package main

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/google/uuid"
	"github.com/utkarshgupta2804/p2p-chat/p2p"
)

// Entry is one live peer connection held by the Registry
type Entry struct {
	Peer     p2p.Peer // Owns the connection handle
	Position int      // Current offset in the registry, rewritten on every removal
}

// ID returns the stable identity of the entry's connection
func (e *Entry) ID() uuid.UUID { return e.Peer.ID() }

// Addr returns the remote (IP, port) of the entry
func (e *Entry) Addr() netip.AddrPort { return e.Peer.RemoteAddrPort() }

// PeerInfo is a read-only copy of an entry used for listing
type PeerInfo struct {
	Position int
	ID       uuid.UUID
	Addr     netip.AddrPort
	Outbound bool
}

// Registry is the bounded, ordered set of active peer connections.
// Every method holds mu for its whole duration, so callers never observe
// a registry in the middle of a mutation.
type Registry struct {
	mu       sync.Mutex
	capacity int
	entries  []*Entry
}

// NewRegistry creates an empty registry holding at most capacity entries
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = defaultMaxConnections
	}
	return &Registry{
		capacity: capacity,
		entries:  make([]*Entry, 0, capacity),
	}
}

// Cap returns the maximum number of entries
func (r *Registry) Cap() int {
	return r.capacity
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Full reports whether another Insert would fail with ErrRegistryFull
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) >= r.capacity
}

// Contains reports whether a peer with the given address is registered
func (r *Registry) Contains(addr netip.AddrPort) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOfAddr(addr) >= 0
}

// Insert appends peer at the tail.
func (r *Registry) Insert(peer p2p.Peer) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		return nil, ErrRegistryFull
	}
	if r.indexOfAddr(peer.RemoteAddrPort()) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, peer.RemoteAddrPort())
	}

	e := &Entry{Peer: peer, Position: len(r.entries)}
	r.entries = append(r.entries, e)
	return e, nil
}

// Get returns the entry at position
func (r *Registry) Get(position int) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.valid(position) {
		return nil, ErrInvalidPosition
	}
	return r.entries[position], nil
}

// Do resolves position and runs fn with the entry while the registry is
// locked, so no removal can shift a different entry into that position
// between lookup and use. fn must not call back into the registry.
func (r *Registry) Do(position int, fn func(*Entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.valid(position) {
		return ErrInvalidPosition
	}
	return fn(r.entries[position])
}

// RemoveAt closes and removes the entry at position.
func (r *Registry) RemoveAt(position int) (*Entry, error) {
	return r.RemoveAtFunc(position, nil)
}

// RemoveAtFunc runs before (if not nil) on the entry at position and then
// closes and removes it, all under one lock hold. before cannot veto the
// removal.
func (r *Registry) RemoveAtFunc(position int, before func(*Entry)) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.valid(position) {
		return nil, ErrInvalidPosition
	}
	e := r.entries[position]
	if before != nil {
		before(e)
	}
	r.removeLocked(position)
	return e, nil
}

// Remove closes and removes the entry whose connection has the given id.
// It reports false when no such entry exists, e.g. because it was already
// terminated locally.
func (r *Registry) Remove(id uuid.UUID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.ID() == id {
			r.removeLocked(i)
			return e, true
		}
	}
	return nil, false
}

// Drain removes every entry without closing them and returns them in
// registry order. The caller owns the returned connections.
func (r *Registry) Drain() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := r.entries
	r.entries = make([]*Entry, 0, r.capacity)
	return drained
}

// Snapshot returns a copy of the registry contents in order
func (r *Registry) Snapshot() []PeerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]PeerInfo, len(r.entries))
	for i, e := range r.entries {
		infos[i] = PeerInfo{
			Position: e.Position,
			ID:       e.ID(),
			Addr:     e.Addr(),
			Outbound: e.Peer.Outbound(),
		}
	}
	return infos
}

func (r *Registry) valid(position int) bool {
	return position >= 0 && position < len(r.entries)
}

func (r *Registry) indexOfAddr(addr netip.AddrPort) int {
	for i, e := range r.entries {
		if e.Addr() == addr {
			return i
		}
	}
	return -1
}

// removeLocked closes the handle, shifts the tail left and re-stamps
// positions. r.mu must be held.
func (r *Registry) removeLocked(position int) {
	e := r.entries[position]
	e.Peer.Close()

	copy(r.entries[position:], r.entries[position+1:])
	r.entries[len(r.entries)-1] = nil
	r.entries = r.entries[:len(r.entries)-1]

	for i := position; i < len(r.entries); i++ {
		r.entries[i].Position = i
	}
}
