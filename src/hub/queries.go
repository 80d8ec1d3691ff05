package hub

import (
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// RegisterHandler registers a handler for inbound client events of one type.
// A handled type bypasses the inbound publish policy.
func (h *Hub) RegisterHandler(eventType types.EventType, handler types.MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[eventType] = handler
}

// OnConnection registers a callback for new connections.
func (h *Hub) OnConnection(cb func(types.ClientInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, cb)
}

// OnDisconnection registers a callback for disconnections.
func (h *Hub) OnDisconnection(cb func(types.ClientInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconn = append(h.onDisconn, cb)
}

// ConnectedClients returns a list of connected client IDs.
func (h *Hub) ConnectedClients() []string {
	ids := make([]string, 0, h.registry.Len())
	for c := range h.registry.Matching("") {
		ids = append(ids, c.ID)
	}
	return ids
}

// ClientInfo returns info for a connected client, or nil.
func (h *Hub) ClientInfo(clientID string) *types.ClientInfo {
	client, ok := h.registry.Get(clientID)
	if !ok {
		return nil
	}
	info := client.Info()
	return &info
}

// Scopes returns organization ids with their connection counts.
// Unscoped connections are not listed.
func (h *Hub) Scopes() map[string]int {
	result := make(map[string]int)
	for c := range h.registry.Matching("") {
		if c.OrganizationID != "" {
			result[c.OrganizationID]++
		}
	}
	return result
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}
