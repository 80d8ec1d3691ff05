package bridge

import "github.com/yashUcr773/task-management-app-sub001/src/types"

// Bridge defines the interface for cross-instance event fan-out.
// Implementations relay published events between server instances so a
// client connected to any instance sees events produced on every other.
type Bridge interface {
	// Publish sends an already stamped event to all other instances.
	Publish(evt types.Event) error

	// Start begins listening for messages from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// BroadcastTarget is implemented by the Hub to receive events from the bridge.
type BroadcastTarget interface {
	BroadcastToLocal(evt types.Event)
}
