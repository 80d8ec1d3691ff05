package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/yashUcr773/task-management-app-sub001/src/hub"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// ErrMissingUser is returned by QueryIdentity when the handshake carries no userId.
var ErrMissingUser = errors.New("userId query parameter is required")

// IdentityProvider resolves the verified identity of a websocket handshake.
type IdentityProvider interface {
	Identify(ctx *fasthttp.RequestCtx) (userID, organizationID string, err error)
}

// QueryIdentity reads userId and organizationId from the upgrade query string.
type QueryIdentity struct{}

func (QueryIdentity) Identify(ctx *fasthttp.RequestCtx) (string, string, error) {
	args := ctx.QueryArgs()
	userID := string(args.Peek("userId"))
	if userID == "" {
		return "", "", ErrMissingUser
	}
	return userID, string(args.Peek("organizationId")), nil
}

// RegisterRoutes registers the operator routes via Fiber.
// The actual WebSocket upgrade uses FastHTTPHandler, registered
// at the server level since Fiber v3 does not expose *fasthttp.RequestCtx.
func (p *Provider) RegisterRoutes(group fiber.Router) {
	group.Get("/ws/info", p.handleInfo)
	group.Get("/ws/clients", p.handleClients)
	group.Get("/ws/scopes", p.handleScopes)
	group.Post("/ws/publish", p.handlePublish)
	group.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))
	group.All("/mcp", adaptor.HTTPHandler(server.NewStreamableHTTPServer(p.MCPServer())))

	if p.store != nil {
		p.registerTaskRoutes(group)
	}
}

func (p *Provider) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket":      true,
		"endpoint":       "/ws",
		"version":        Version,
		"clients":        p.hub.ClientCount(),
		"scopes":         len(p.hub.Scopes()),
		"inbound_policy": p.cfg.InboundPolicy,
		"bridge":         p.bridge != nil && p.bridge.Available(),
	})
}

func (p *Provider) handleClients(c fiber.Ctx) error {
	infos := p.clientInfos()
	return c.JSON(fiber.Map{"clients": infos, "count": len(infos)})
}

func (p *Provider) handleScopes(c fiber.Ctx) error {
	scopes := p.service.GetScopes()
	return c.JSON(fiber.Map{"scopes": scopes, "count": len(scopes)})
}

type publishRequest struct {
	Type           types.EventType `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	UserID         string          `json:"userId"`
	OrganizationID string          `json:"organizationId"`
	TeamID         string          `json:"teamId"`
}

func (p *Provider) handlePublish(c fiber.Ctx) error {
	var req publishRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json", "message": err.Error()})
	}
	evt := types.Event{
		Type:           req.Type,
		Payload:        req.Payload,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		TeamID:         req.TeamID,
	}
	if err := p.service.PublishEvent(evt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_event", "message": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"published": true, "type": evt.Type})
}

func (p *Provider) clientInfos() []types.ClientInfo {
	ids := p.service.GetConnectedClients()
	infos := make([]types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		if info, err := p.service.GetClientInfo(id); err == nil {
			infos = append(infos, *info)
		}
	}
	return infos
}

// FastHTTPHandler returns a raw fasthttp handler for WebSocket upgrades.
// Register this on the fasthttp server at the "/ws" path.
func (p *Provider) FastHTTPHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  p.cfg.ReadBufferSize,
		WriteBufferSize: p.cfg.WriteBufferSize,
		CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
	}

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			writeError(ctx, fasthttp.StatusUpgradeRequired, "upgrade_required", "WebSocket upgrade required")
			return
		}

		userID, orgID, err := p.identity.Identify(ctx)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "identity_required", err.Error())
			return
		}
		if limit := p.cfg.MaxConnections; limit > 0 && p.hub.ClientCount() >= limit {
			writeError(ctx, fasthttp.StatusServiceUnavailable, "at_capacity", hub.ErrTooManyConnections.Error())
			return
		}

		h := p.hub
		logger := p.logger

		err = upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client, err := h.Register(conn, userID, orgID)
			if err != nil {
				logger.Warn().Err(err).Str("user_id", userID).Msg("connection rejected")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
					time.Now().Add(time.Second))
				conn.Close()
				return
			}
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// Handler dispatches /ws to the upgrade handler and everything else to app.
func (p *Provider) Handler(app *fiber.App) fasthttp.RequestHandler {
	ws := p.FastHTTPHandler()
	rest := app.Handler()
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/ws" {
			ws(ctx)
			return
		}
		rest(ctx)
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	body, _ := json.Marshal(fiber.Map{"error": code, "message": message})
	ctx.SetStatusCode(status)
	ctx.SetContentType(fiber.MIMEApplicationJSON)
	ctx.SetBody(body)
}
