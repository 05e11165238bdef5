// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sort"
	"sync"
)

// =============================================================================
// SHARED DIRECTORY
// =============================================================================

// Directory maps a connection identity (the peer address) to the username it
// registered. An entry exists exactly while the connection is registered and
// still open. The lock is never held across I/O.
type Directory struct {
	names map[string]string
	mu    sync.Mutex
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{names: make(map[string]string)}
}

// Insert records name for identity, replacing any previous entry.
func (d *Directory) Insert(identity, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[identity] = name
}

// Lookup returns the username registered for identity.
func (d *Directory) Lookup(identity string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.names[identity]
	return name, ok
}

// Remove deletes the entry for identity and reports whether one existed.
func (d *Directory) Remove(identity string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.names[identity]
	delete(d.names, identity)
	return ok
}

// Len returns the number of registered connections.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.names)
}

// Names returns the registered usernames, sorted.
func (d *Directory) Names() []string {
	d.mu.Lock()
	names := make([]string, 0, len(d.names))
	for _, name := range d.names {
		names = append(names, name)
	}
	d.mu.Unlock()

	sort.Strings(names)
	return names
}
