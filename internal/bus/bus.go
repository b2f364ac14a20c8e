// Package bus defines the contracts of the in-process event bus: events and their kinds,
// the per-kind message queue, publishers, subscriber handlers and the resolver that supplies
// them. Concrete implementations live in the queue, publisher and dispatcher subpackages.
package bus
