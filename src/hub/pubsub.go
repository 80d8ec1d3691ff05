package hub

import (
	"encoding/json"
	"time"

	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Publish stamps the event with the hub clock and fans it out to every client
// in its organization scope, or to all clients when the scope is empty.
// Delivery is best-effort; Publish never fails.
func (h *Hub) Publish(evt types.Event) {
	evt.Timestamp = types.FormatTimestamp(h.stamp())
	h.fanOut(evt)
	h.publishToBridge(evt)
}

// stamp returns the current time at millisecond precision, never earlier than
// the previous stamp.
func (h *Hub) stamp() time.Time {
	h.stampMu.Lock()
	defer h.stampMu.Unlock()

	now := h.now().UTC().Truncate(time.Millisecond)
	if now.Before(h.lastStamp) {
		now = h.lastStamp
	}
	h.lastStamp = now
	return now
}

// fanOut serializes evt once and queues the frame on every matching client.
func (h *Hub) fanOut(evt types.Event) int {
	frame, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("failed to encode event")
		return 0
	}

	delivered := 0
	for c := range h.registry.Matching(evt.OrganizationID) {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		h.metrics.Dropped()
		h.logger.Warn().Str("client_id", c.ID).Str("type", string(evt.Type)).Msg("send buffer full, dropping")
	}
	h.metrics.Published(metricLabel(evt.Type))
	return delivered
}

// metricLabel folds client-chosen event types into one series.
func metricLabel(t types.EventType) string {
	if t.Known() {
		return string(t)
	}
	return "other"
}

// sendTo stamps evt and queues it on a single client.
func (h *Hub) sendTo(c *Client, evt types.Event) bool {
	evt.Timestamp = types.FormatTimestamp(h.stamp())
	frame, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("failed to encode event")
		return false
	}
	return c.enqueue(frame)
}

// SendToClient sends an event directly to a specific client.
func (h *Hub) SendToClient(clientID string, evt types.Event) bool {
	c, ok := h.registry.Get(clientID)
	if !ok {
		return false
	}
	return h.sendTo(c, evt)
}

// publishToBridge forwards an event to the bridge if one is attached.
func (h *Hub) publishToBridge(evt types.Event) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(evt); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}

func (h *Hub) handleMessage(sender *Client, evt types.Event) {
	h.mu.RLock()
	handler, ok := h.handlers[evt.Type]
	h.mu.RUnlock()

	if ok {
		if err := handler(sender.Info(), evt); err != nil {
			h.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("handler error")
		}
		return
	}

	evt, reason := h.authorize(sender, evt)
	if reason != "" {
		h.metrics.Rejected(reason)
		h.logger.Warn().
			Str("client_id", sender.ID).
			Str("type", string(evt.Type)).
			Str("organization_id", evt.OrganizationID).
			Str("reason", reason).
			Msg("inbound event rejected")
		return
	}
	h.Publish(evt)
}

// authorize applies the inbound policy to a client-originated event. A
// non-empty reason means the event must not be published.
func (h *Hub) authorize(sender *Client, evt types.Event) (types.Event, string) {
	if evt.Type == types.EventConnectionEstablished {
		return evt, "reserved_type"
	}

	switch h.policy {
	case config.InboundVerbatim:
		return evt, ""
	case config.InboundDeny:
		return evt, "client_publish_disabled"
	}

	if sender.OrganizationID == "" {
		return evt, "unscoped_sender"
	}
	if evt.OrganizationID != "" && evt.OrganizationID != sender.OrganizationID {
		return evt, "scope_mismatch"
	}
	evt.OrganizationID = sender.OrganizationID
	evt.UserID = sender.UserID
	return evt, ""
}
