package service

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/src/hub"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Service provides the high-level realtime publish and query API.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// New creates a new realtime service backed by the given hub.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	return &Service{hub: h, logger: logger}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// RegisterHandler registers a handler for inbound client events of one type.
func (s *Service) RegisterHandler(eventType types.EventType, handler types.MessageHandler) {
	s.hub.RegisterHandler(eventType, handler)
	s.logger.Debug().Str("type", string(eventType)).Msg("handler registered")
}

// Publish builds an event from a typed payload and fans it out within scope.
func (s *Service) Publish(payload types.Payload, scope types.Scope) error {
	evt, err := types.NewEvent(payload, scope)
	if err != nil {
		return err
	}
	s.hub.Publish(evt)
	return nil
}

// PublishEvent fans out a prepared event after checking its wire shape.
func (s *Service) PublishEvent(evt types.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	if evt.Type == types.EventConnectionEstablished {
		return fmt.Errorf("%s is reserved for handshakes", evt.Type)
	}
	s.hub.Publish(evt)
	s.logger.Debug().
		Str("type", string(evt.Type)).
		Str("organization_id", evt.OrganizationID).
		Msg("event published")
	return nil
}

// OnConnection registers a callback for new connections.
func (s *Service) OnConnection(cb func(types.ClientInfo)) {
	s.hub.OnConnection(cb)
}

// OnDisconnection registers a callback for disconnections.
func (s *Service) OnDisconnection(cb func(types.ClientInfo)) {
	s.hub.OnDisconnection(cb)
}

// AnnouncePresence publishes user_joined and user_left into a client's
// organization as it connects and disconnects. Unscoped clients are not announced.
func (s *Service) AnnouncePresence() {
	s.OnConnection(func(info types.ClientInfo) {
		s.announce(types.UserJoinedPayload{UserID: info.UserID}, info)
	})
	s.OnDisconnection(func(info types.ClientInfo) {
		s.announce(types.UserLeftPayload{UserID: info.UserID}, info)
	})
}

func (s *Service) announce(p types.Payload, info types.ClientInfo) {
	if info.OrganizationID == "" {
		return
	}
	scope := types.Scope{UserID: info.UserID, OrganizationID: info.OrganizationID}
	if err := s.Publish(p, scope); err != nil {
		s.logger.Error().Err(err).Str("type", string(p.EventType())).Msg("presence publish failed")
	}
}

// GetConnectedClients returns IDs of all connected clients.
func (s *Service) GetConnectedClients() []string {
	return s.hub.ConnectedClients()
}

// SendToClient sends a typed event directly to a specific client.
func (s *Service) SendToClient(clientID string, payload types.Payload) error {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return fmt.Errorf("client %s not found", clientID)
	}
	evt, err := types.NewEvent(payload, types.Scope{OrganizationID: info.OrganizationID})
	if err != nil {
		return err
	}
	if ok := s.hub.SendToClient(clientID, evt); !ok {
		return fmt.Errorf("client %s not found or buffer full", clientID)
	}
	return nil
}

// GetScopes returns organizations with their connection counts.
func (s *Service) GetScopes() map[string]int {
	return s.hub.Scopes()
}

// GetClientInfo returns info for a connected client, or error.
func (s *Service) GetClientInfo(clientID string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return nil, fmt.Errorf("client %s not found", clientID)
	}
	return info, nil
}
