// Package ports defines the interfaces between the scheduling core and its
// external collaborators: node executors, checkpoint stores, the event bus,
// and metrics. Adapters under pkg/adapters provide the reference
// implementations; any durable backing technology plugs in behind the same
// interfaces.
package ports
