package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/auth"
	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/game"
	playerservice "github.com/undercroft/undercroft/internal/services/player"
)

// Application close codes sent when the auth guard rejects a
// connection.
const (
	CloseMissingProfile  = 4400
	CloseBadToken        = 4401
	CloseProfileMismatch = 4403
)

// HandlerConfig holds configuration for the WebSocket handler.
type HandlerConfig struct {
	Registry *game.Registry        // Required
	Profiles playerservice.Service // Required
	Verifier auth.TokenVerifier    // Required
	Logger   *zap.Logger
}

// Handler upgrades /ws requests, authenticates them, routes them to a
// game, and pumps client messages into it.
type Handler struct {
	registry *game.Registry
	profiles playerservice.Service
	verifier auth.TokenVerifier
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Registry == nil {
		panic("game registry is required")
	}
	if cfg.Profiles == nil {
		panic("player service is required")
	}
	if cfg.Verifier == nil {
		panic("token verifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		registry: cfg.Registry,
		profiles: cfg.Profiles,
		verifier: cfg.Verifier,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The frontend is served from arbitrary origins in dev;
			// cookie auth is the actual gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	client := newClient(wsConn)

	ctx := r.Context()

	userID, closeCode, reason := h.authenticate(r)
	if closeCode != 0 {
		client.closeWithCode(closeCode, reason)
		return
	}

	// The player token doubles as the profile id; first connection
	// creates the profile bound to the authenticated user.
	token := cookieValue(r, "player_token")
	profile, err := h.profiles.GetOrCreateProfile(ctx, token, userID, r.URL.Query().Get("name"))
	if err != nil {
		h.log.Error("profile lookup failed", zap.Error(err))
		client.closeWithCode(websocket.CloseInternalServerErr, "profile lookup failed")
		return
	}
	if profile.UserID != userID {
		client.closeWithCode(CloseProfileMismatch, "profile does not belong to user")
		return
	}

	g, err := h.resolveGame(ctx, r)
	if err != nil {
		h.log.Warn("game resolution failed", zap.Error(err))
		client.closeWithCode(websocket.ClosePolicyViolation, "no game available")
		return
	}

	// The client gets a short window for its first message, claiming an
	// existing player via reconnect; anything else is replayed after
	// the join. A silent client is dropped, not waited on.
	existingPlayerID := ""
	var pending *clientMessage
	var first clientMessage
	if err := client.readJSON(&first, firstMessageWait); err != nil {
		_ = client.Close()
		return
	}
	if first.Type == msgReconnect {
		existingPlayerID = first.PlayerID
	} else {
		pending = &first
	}

	playerID, _, err := g.AddPlayer(ctx, client, token, existingPlayerID, profile.Name)
	if err != nil {
		client.closeWithCode(websocket.ClosePolicyViolation, err.Error())
		return
	}

	if pending != nil {
		h.dispatch(ctx, g, client, playerID, pending)
	}
	h.readLoop(g, client, playerID)
}

// authenticate runs the access-token side of the guard. A zero close
// code means the request passed.
func (h *Handler) authenticate(r *http.Request) (userID string, closeCode int, reason string) {
	if cookieValue(r, "player_token") == "" {
		return "", CloseMissingProfile, "missing player token"
	}

	accessToken := cookieValue(r, "access_token")
	userID, err := h.verifier.VerifyAccessToken(accessToken)
	if err != nil {
		return "", CloseBadToken, "invalid access token"
	}
	return userID, 0, ""
}

// resolveGame routes the connection: an explicit game id is restored
// on demand; otherwise the registry places the player.
func (h *Handler) resolveGame(ctx context.Context, r *http.Request) (*game.Game, error) {
	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		return h.registry.FindOrRestore(ctx, gameID)
	}
	return h.registry.AutoJoin(ctx)
}

func (h *Handler) readLoop(g *game.Game, client *Client, playerID string) {
	defer g.HandleDisconnect(context.Background(), playerID)

	for {
		var msg clientMessage
		if err := client.readJSON(&msg, pongWait); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("connection dropped",
					zap.String("player", playerID),
					zap.Error(err))
			}
			return
		}
		h.dispatch(context.Background(), g, client, playerID, &msg)
	}
}

// dispatch maps one client message onto the game API. Rejections go
// back to the sender; they never tear the connection down.
func (h *Handler) dispatch(ctx context.Context, g *game.Game, client *Client, playerID string, msg *clientMessage) {
	var err error
	switch msg.Type {
	case msgPing:
		err = client.WriteJSON(pongMessage{Type: "pong"})
	case msgMove:
		err = g.MovePlayer(ctx, playerID, msg.DX, msg.DY)
	case msgInteract:
		err = g.Interact(ctx, playerID)
	case msgRequestFight:
		err = g.RequestFight(ctx, playerID, msg.MonsterID)
	case msgJoinFight:
		err = g.JoinFight(ctx, playerID, msg.FightID)
	case msgDeclineFight:
		err = g.DeclineFight(ctx, playerID)
	case msgFleeFight:
		err = g.FleeFight(ctx, playerID, msg.FightID)
	case msgCombatAction:
		err = g.CombatAction(ctx, playerID, msg.FightID, msg.Action)
	case msgReconnect:
		// Only meaningful as the first message; ignore afterwards.
		return
	default:
		err = dserr.InvalidArgumentf("unknown message type '%s'", msg.Type)
	}

	if err != nil {
		if werr := client.WriteJSON(game.NewErrorMessage(err.Error())); werr != nil {
			h.log.Debug("failed to send rejection",
				zap.String("player", playerID),
				zap.Error(werr))
		}
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
