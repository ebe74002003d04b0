// Package runtime handles event publication and live fan-out.
// It routes envelopes to subscribers without containing domain rules.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"support-chat/contract"
)

type Set map[string]struct{}

type connection struct {
	id           string
	shopID       string
	userID       string // staff only
	customerCode string // customer only
	sink         contract.EnvelopeSink
}

// Registry is the single authoritative in-memory map of live subscribers.
//
// Staff connections live in a user -> set-of-connections keyspace: one
// agent with three tabs holds three entries and every fan-out reaches all
// of them. Customer connections occupy a single (shop, customer) slot;
// a reconnect replaces the previous registration (last-connect-wins).
//
// The mutex guards only map mutation and the snapshot taken before a
// broadcast; delivery happens outside the lock so a slow consumer can
// never stall registration or other targets.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	conns       map[string]*connection // connection_id -> record
	staffByShop map[string]Set         // shop_id -> connection ids
	staffByUser map[string]Set         // user_id -> connection ids
	customers   map[string]string      // shop_id/customer_code -> connection id
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		conns:       make(map[string]*connection),
		staffByShop: make(map[string]Set),
		staffByUser: make(map[string]Set),
		customers:   make(map[string]string),
	}
}

func customerSlot(shopID, customerCode string) string {
	return shopID + "/" + customerCode
}

// RegisterStaff binds a staff connection to its user and shop.
func (r *Registry) RegisterStaff(connID, userID, shopID string, sink contract.EnvelopeSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = &connection{id: connID, shopID: shopID, userID: userID, sink: sink}

	if _, ok := r.staffByShop[shopID]; !ok {
		r.staffByShop[shopID] = make(Set)
	}
	r.staffByShop[shopID][connID] = struct{}{}

	if _, ok := r.staffByUser[userID]; !ok {
		r.staffByUser[userID] = make(Set)
	}
	r.staffByUser[userID][connID] = struct{}{}
}

// RegisterCustomer claims the (shop, code) slot and returns the sink of a
// previously registered connection, if any, so the caller can close it.
func (r *Registry) RegisterCustomer(connID, shopID, customerCode string, sink contract.EnvelopeSink) contract.EnvelopeSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced contract.EnvelopeSink
	slot := customerSlot(shopID, customerCode)
	if previousID, ok := r.customers[slot]; ok && previousID != connID {
		if previous, ok := r.conns[previousID]; ok {
			replaced = previous.sink
			delete(r.conns, previousID)
		}
	}

	r.conns[connID] = &connection{id: connID, shopID: shopID, customerCode: customerCode, sink: sink}
	r.customers[slot] = connID
	return replaced
}

// Unregister removes a connection from whichever keyspace it occupies.
// Unknown ids are a no-op; disconnect paths may race and both call it.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	if conn.userID != "" {
		if members, ok := r.staffByShop[conn.shopID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.staffByShop, conn.shopID)
			}
		}
		if members, ok := r.staffByUser[conn.userID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.staffByUser, conn.userID)
			}
		}
		return
	}

	slot := customerSlot(conn.shopID, conn.customerCode)
	// A replacement may already own the slot; only clear our own claim.
	if r.customers[slot] == connID {
		delete(r.customers, slot)
	}
}

// SendToCustomer delivers one frame to the live connection of a
// (shop, customer) pair, if any.
func (r *Registry) SendToCustomer(shopID, customerCode string, frame []byte) {
	r.mu.RLock()
	var sink contract.EnvelopeSink
	if connID, ok := r.customers[customerSlot(shopID, customerCode)]; ok {
		if conn, ok := r.conns[connID]; ok {
			sink = conn.sink
		}
	}
	r.mu.RUnlock()

	if sink == nil {
		return
	}
	if err := sink.Deliver(frame); err != nil {
		r.log.Warn(fmt.Sprintf("Dropping frame for customer %s/%s", shopID, customerCode),
			"error", err)
	}
}

// BroadcastToStaff delivers one frame to every staff connection of a shop.
// Targets are snapshotted under the read lock; sends happen outside it and
// independently, so one dead tab cannot stall its siblings.
func (r *Registry) BroadcastToStaff(shopID string, frame []byte) {
	r.mu.RLock()
	var sinks []contract.EnvelopeSink
	for connID := range r.staffByShop[shopID] {
		if conn, ok := r.conns[connID]; ok {
			sinks = append(sinks, conn.sink)
		}
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Deliver(frame); err != nil {
			r.log.Warn(fmt.Sprintf("Dropping frame for staff of shop %s", shopID), "error", err)
		}
	}
}

// StaffConnections reports how many live connections a user holds.
func (r *Registry) StaffConnections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.staffByUser[userID])
}
