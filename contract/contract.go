//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"support-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EnvelopeSink is the outbound handle of one live connection.
// Deliver must never block: implementations buffer into a bounded queue
// and report overflow as an error instead of stalling the caller.
type EnvelopeSink interface {
	Deliver(frame []byte) error
	Close()
}

// IRegistry is the authoritative in-memory map of live subscribers.
// Two independent keyspaces: staff connections (multi-tab, keyed by user)
// and customer connections (single slot per shop/customer, last-connect-wins).
// Send methods snapshot targets under the lock and deliver outside it.
type IRegistry interface {
	RegisterStaff(connID, userID, shopID string, sink EnvelopeSink)
	// RegisterCustomer returns the sink it replaced, if the (shop, code)
	// slot was already taken. The caller closes the evicted connection.
	RegisterCustomer(connID, shopID, customerCode string, sink EnvelopeSink) EnvelopeSink
	// Unregister is idempotent: unknown connection ids are a no-op.
	Unregister(connID string)
	SendToCustomer(shopID, customerCode string, frame []byte)
	BroadcastToStaff(shopID string, frame []byte)
}

// IPublisher enriches, persists and fans out the events drained from an
// aggregate after a successful use case.
type IPublisher interface {
	Publish(ctx context.Context, events []event.DomainEvent)
}
