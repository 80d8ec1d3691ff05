package hub

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/metrics"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

func TestInboundScopedPolicyForcesSenderScope(t *testing.T) {
	h := newTestHub(t)
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")
	_, outsider := registerClient(t, h, "u-out", "org-b")

	senderConn.send(`{"type":"comment_added","payload":{"comment":{"id":"c-1"}},"userId":"spoofed","timestamp":"2000-01-01T00:00:00.000Z"}`)

	eventually(t, func() bool {
		return len(peer.eventsOfType(t, types.EventCommentAdded)) == 1
	}, "peer in the same organization should receive the event")

	got := peer.eventsOfType(t, types.EventCommentAdded)[0]
	assert.Equal(t, "org-a", got.OrganizationID)
	assert.Equal(t, "u-sender", got.UserID)
	assert.NotEqual(t, "2000-01-01T00:00:00.000Z", got.Timestamp)

	time.Sleep(settle)
	assert.Empty(t, outsider.eventsOfType(t, types.EventCommentAdded))
}

func TestInboundScopedPolicyRejectsForeignScope(t *testing.T) {
	h := newTestHub(t)
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, target := registerClient(t, h, "u-target", "org-b")

	senderConn.send(`{"type":"task_deleted","payload":{"taskId":"t-1"},"organizationId":"org-b"}`)

	time.Sleep(settle)
	assert.Empty(t, target.eventsOfType(t, types.EventTaskDeleted))
	assert.NotNil(t, h.ClientInfo(sender.ID), "rejection must not close the sender")
}

func TestInboundScopedPolicyRejectsUnscopedSender(t *testing.T) {
	h := newTestHub(t)
	sender, senderConn := registerClient(t, h, "u-sender", "")
	startReading(sender)
	_, other := registerClient(t, h, "u-other", "")

	senderConn.send(`{"type":"task_deleted","payload":{"taskId":"t-1"}}`)

	time.Sleep(settle)
	assert.Empty(t, other.eventsOfType(t, types.EventTaskDeleted))
}

func TestInboundDenyPolicy(t *testing.T) {
	h := newTestHub(t, WithInboundPolicy(config.InboundDeny))
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	senderConn.send(`{"type":"task_deleted","payload":{"taskId":"t-1"}}`)

	time.Sleep(settle)
	assert.Empty(t, peer.eventsOfType(t, types.EventTaskDeleted))
}

func TestInboundVerbatimPolicyTrustsClientScope(t *testing.T) {
	h := newTestHub(t, WithInboundPolicy(config.InboundVerbatim))
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, target := registerClient(t, h, "u-target", "org-b")

	senderConn.send(`{"type":"task_deleted","payload":{"taskId":"t-1"},"organizationId":"org-b"}`)

	eventually(t, func() bool {
		return len(target.eventsOfType(t, types.EventTaskDeleted)) == 1
	}, "verbatim policy rebroadcasts into the client-supplied scope")
}

func TestInboundReservedTypeRejected(t *testing.T) {
	h := newTestHub(t, WithInboundPolicy(config.InboundVerbatim))
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	eventually(t, func() bool {
		return len(peer.eventsOfType(t, types.EventConnectionEstablished)) == 1
	}, "peer greeted")

	senderConn.send(`{"type":"connection_established","payload":{"userId":"u-sender"}}`)

	time.Sleep(settle)
	assert.Len(t, peer.eventsOfType(t, types.EventConnectionEstablished), 1)
}

func TestMalformedFrameIsDroppedWithoutClosing(t *testing.T) {
	h := newTestHub(t)
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	senderConn.send(`this is not json`)
	senderConn.send(`{"payload":{}}`)
	senderConn.send(`{"type":"task_deleted","payload":{"taskId":"t-2"}}`)

	eventually(t, func() bool {
		return len(peer.eventsOfType(t, types.EventTaskDeleted)) == 1
	}, "valid frame after malformed ones should still be routed")
	assert.False(t, senderConn.isClosed())
	assert.NotNil(t, h.ClientInfo(sender.ID))
}

func TestUnknownTypeForwardedAsIs(t *testing.T) {
	h := newTestHub(t)
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	senderConn.send(`{"type":"sprint_closed","payload":{"sprintId":"s-1"}}`)

	eventually(t, func() bool {
		return len(peer.eventsOfType(t, "sprint_closed")) == 1
	}, "unknown types pass through")
	got := peer.eventsOfType(t, "sprint_closed")[0]
	assert.JSONEq(t, `{"sprintId":"s-1"}`, string(got.Payload))
}

func TestUnknownTypesShareOneMetricSeries(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := newTestHub(t, WithMetrics(m))
	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	const distinct = 25
	for i := 0; i < distinct; i++ {
		senderConn.send(fmt.Sprintf(`{"type":"junk_%d","payload":{}}`, i))
	}
	eventually(t, func() bool {
		n := 0
		for _, evt := range peer.events(t) {
			if strings.HasPrefix(string(evt.Type), "junk_") {
				n++
			}
		}
		return n == distinct
	}, "every unknown type is still delivered")

	h.Publish(taskEvent(t, "org-a"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.EventsPublished))
	assert.Equal(t, float64(distinct), testutil.ToFloat64(m.EventsPublished.WithLabelValues("other")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues(string(types.EventTaskUpdated))))
}

func TestHandlerBypassesPolicy(t *testing.T) {
	h := newTestHub(t)

	var mu sync.Mutex
	var from types.ClientInfo
	h.RegisterHandler("typing", func(sender types.ClientInfo, evt types.Event) error {
		mu.Lock()
		defer mu.Unlock()
		from = sender
		return errors.New("logged, not fatal")
	})

	sender, senderConn := registerClient(t, h, "u-sender", "org-a")
	startReading(sender)
	_, peer := registerClient(t, h, "u-peer", "org-a")

	senderConn.send(`{"type":"typing","payload":{"taskId":"t-1"}}`)

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return from.ID == sender.ID
	}, "handler should receive the frame")

	time.Sleep(settle)
	assert.Empty(t, peer.eventsOfType(t, "typing"))
}

func TestPeerCloseUnregisters(t *testing.T) {
	h := newTestHub(t)
	c, conn := registerClient(t, h, "u-1", "org-a")
	startReading(c)

	conn.Close()

	eventually(t, func() bool { return h.ClientCount() == 0 }, "close should unregister")
}
