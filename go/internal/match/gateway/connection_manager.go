package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Coordinator is what the gateway needs from the match coordinator.
type Coordinator interface {
	HandleInput(matchID, playerID, char string) (models.MatchRoom, bool, error)
	GetRoom(matchID string) (models.MatchRoom, error)
}

// MetricsCollector receives gateway events.
type MetricsCollector interface {
	SetActiveConnections(n int)
	RecordInboundMessage(kind string)
	RecordDroppedMessage(reason string)
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) SetActiveConnections(int)    {}
func (NoOpMetricsCollector) RecordInboundMessage(string) {}
func (NoOpMetricsCollector) RecordDroppedMessage(string) {}

// ConnectionManager owns every open websocket and fans match state out to
// the connections bound to each match.
//
// Critical section: mu guards connections, matchConnections,
// playerConnections and each Connection's playerID and matches. It is never
// held while writing to a socket; broadcasts copy their targets first.
type ConnectionManager struct {
	connections       map[*Connection]bool
	matchConnections  map[string]map[*Connection]bool
	playerConnections map[string]map[*Connection]bool
	mu                sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	coordinator Coordinator
	metrics     MetricsCollector

	broadcastCh chan BroadcastMessage
}

// Connection is one client websocket.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	playerID string
	matches  map[string]bool

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter

	// scoreMu orders SCORE_UPDATE frames; scoreVersions holds the last
	// room version queued per match.
	scoreMu       sync.Mutex
	scoreVersions map[string]uint64

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout         time.Duration
	ReadTimeout          time.Duration
	PingInterval         time.Duration
	MaxMessageSize       int64
	ReadBufferSize       int
	WriteBufferSize      int
	SendBufferSize       int
	MaxMessagesPerSecond float64 // 0 disables the limit
	CheckOrigin          func(r *http.Request) bool
}

// BroadcastMessage is a frame for every connection bound to MatchID, or for
// every connection of the listed players.
type BroadcastMessage struct {
	MatchID   string
	PlayerIDs []string
	Payload   any
	// Bind adds the player connections to MatchID before sending.
	Bind bool
	// Unbind removes every connection from MatchID after sending.
	Unbind bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
		PingInterval:         30 * time.Second,
		MaxMessageSize:       1024,
		ReadBufferSize:       1024,
		WriteBufferSize:      1024,
		SendBufferSize:       256,
		MaxMessagesPerSecond: 50,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, coordinator Coordinator, metrics MetricsCollector) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &ConnectionManager{
		connections:       make(map[*Connection]bool),
		matchConnections:  make(map[string]map[*Connection]bool),
		playerConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		coordinator: coordinator,
		metrics:     metrics,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades the request and starts the connection pumps.
// playerID may be empty; JOIN_MATCH can supply it later.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	limit := rate.Inf
	burst := 0
	if cm.config.MaxMessagesPerSecond > 0 {
		limit = rate.Limit(cm.config.MaxMessagesPerSecond)
		burst = max(int(cm.config.MaxMessagesPerSecond), 1)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		Conn:          conn,
		Manager:       cm,
		matches:       make(map[string]bool),
		scoreVersions: make(map[string]uint64),
		send:          make(chan []byte, cm.config.SendBufferSize),
		closed:        make(chan struct{}),
		limiter:       rate.NewLimiter(limit, burst),
		ConnectedAt:   time.Now(),
	}

	cm.registerConnection(connection, playerID)
	connection.sendJSON(Welcome{Type: TypeWelcome, Msg: "connected to typeduel"})

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection, playerID string) {
	cm.mu.Lock()
	cm.connections[conn] = true
	if playerID != "" {
		cm.identifyLocked(conn, playerID)
	}
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.SetActiveConnections(total)
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

// identifyLocked must be called with mu held.
func (cm *ConnectionManager) identifyLocked(conn *Connection, playerID string) {
	if conn.playerID == playerID {
		return
	}
	if conn.playerID != "" {
		removeFrom(cm.playerConnections, conn.playerID, conn)
	}
	conn.playerID = playerID
	addTo(cm.playerConnections, playerID, conn)
}

// bindLocked must be called with mu held.
func (cm *ConnectionManager) bindLocked(conn *Connection, matchID string) {
	conn.matches[matchID] = true
	addTo(cm.matchConnections, matchID, conn)
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if !cm.connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	for matchID := range conn.matches {
		removeFrom(cm.matchConnections, matchID, conn)
	}
	if conn.playerID != "" {
		removeFrom(cm.playerConnections, conn.playerID, conn)
	}
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.SetActiveConnections(total)
	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.playerID).
		Msg("connection unregistered")
}

func addTo(index map[string]map[*Connection]bool, key string, conn *Connection) {
	if index[key] == nil {
		index[key] = make(map[*Connection]bool)
	}
	index[key][conn] = true
}

func removeFrom(index map[string]map[*Connection]bool, key string, conn *Connection) {
	if set, ok := index[key]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// Broadcast queues message for the broadcast loop.
func (cm *ConnectionManager) Broadcast(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		cm.metrics.RecordDroppedMessage("broadcast_full")
		log.Warn().Str("match_id", message.MatchID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	data, err := json.Marshal(message.Payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	cm.mu.Lock()
	targets := make(map[*Connection]bool)
	for _, playerID := range message.PlayerIDs {
		for conn := range cm.playerConnections[playerID] {
			targets[conn] = true
			if message.Bind && message.MatchID != "" {
				cm.bindLocked(conn, message.MatchID)
			}
		}
	}
	if len(message.PlayerIDs) == 0 {
		for conn := range cm.matchConnections[message.MatchID] {
			targets[conn] = true
		}
	}
	if message.Unbind {
		for conn := range cm.matchConnections[message.MatchID] {
			delete(conn.matches, message.MatchID)
		}
		delete(cm.matchConnections, message.MatchID)
	}
	cm.mu.Unlock()

	update, isScore := message.Payload.(ScoreUpdate)
	for conn := range targets {
		if isScore {
			conn.sendScore(update, false)
		} else {
			conn.enqueue(data)
		}
		if message.Unbind {
			conn.forgetMatch(message.MatchID)
		}
	}

	log.Debug().
		Str("match_id", message.MatchID).
		Int("connections", len(targets)).
		Msg("message broadcasted")
}

// ConnectionStats is returned by /ws/stats.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	ActiveMatches     int            `json:"active_matches"`
	IdentifiedPlayers int            `json:"identified_players"`
	MatchConnections  map[string]int `json:"match_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.matchConnections))
	for matchID, conns := range cm.matchConnections {
		counts[matchID] = len(conns)
	}
	return ConnectionStats{
		TotalConnections:  len(cm.connections),
		ActiveMatches:     len(cm.matchConnections),
		IdentifiedPlayers: len(cm.playerConnections),
		MatchConnections:  counts,
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.close()
	}
}

// enqueue hands data to the write pump. A full buffer means the client is
// not keeping up and the connection is closed.
func (c *Connection) enqueue(data []byte) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.closed:
	default:
		c.Manager.metrics.RecordDroppedMessage("slow_consumer")
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (c *Connection) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal message")
		return
	}
	c.enqueue(data)
}

// sendScore queues a SCORE_UPDATE unless the connection already holds a newer
// state of the match. Broadcasts skip a version already sent; a direct reply
// may repeat it.
func (c *Connection) sendScore(update ScoreUpdate, reply bool) {
	c.scoreMu.Lock()
	defer c.scoreMu.Unlock()

	last, seen := c.scoreVersions[update.MatchID]
	if seen && (update.Version < last || (update.Version == last && !reply)) {
		log.Debug().
			Str("connection_id", c.ID).
			Str("match_id", update.MatchID).
			Uint64("version", update.Version).
			Uint64("last_version", last).
			Msg("skipping stale score update")
		return
	}
	c.scoreVersions[update.MatchID] = update.Version
	c.sendJSON(update)
}

func (c *Connection) forgetMatch(matchID string) {
	c.scoreMu.Lock()
	delete(c.scoreVersions, matchID)
	c.scoreMu.Unlock()
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.Manager.unregisterConnection(c)
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if !c.limiter.Allow() {
			c.Manager.metrics.RecordDroppedMessage("rate_limited")
			log.Warn().Str("connection_id", c.ID).Msg("inbound rate limit exceeded, dropping message")
			continue
		}
		c.handleClientMessage(message)
	}
}

// handleClientMessage decodes and dispatches one inbound frame. Nothing a
// client sends closes the connection.
func (c *Connection) handleClientMessage(data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		c.Manager.metrics.RecordInboundMessage("malformed")
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("ignoring malformed client message")
		return
	}
	c.Manager.metrics.RecordInboundMessage(string(msg.Kind()))

	switch m := msg.(type) {
	case JoinMatch:
		c.joinMatch(m)
	case Input:
		c.handleInput(m)
	case Unrecognized:
		log.Warn().
			Str("connection_id", c.ID).
			Str("type", string(m.Type)).
			Msg("ignoring unrecognized client message")
	}
}

// handleInput scores the keystroke and makes sure the sender sees the result.
// A scored input on a bound connection arrives through the match broadcast;
// everything else is answered directly.
func (c *Connection) handleInput(m Input) {
	cm := c.Manager
	room, scored, err := cm.coordinator.HandleInput(m.MatchID, m.PlayerID, m.Char)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("match_id", m.MatchID).
			Msg("input for unknown match ignored")
		return
	}

	cm.mu.RLock()
	bound := c.matches[m.MatchID]
	cm.mu.RUnlock()
	if scored && bound {
		return
	}
	c.sendScore(newScoreUpdate(room), true)
}

func (c *Connection) joinMatch(m JoinMatch) {
	cm := c.Manager
	room, err := cm.coordinator.GetRoom(m.MatchID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("match_id", m.MatchID).
			Msg("join for unknown match ignored")
		return
	}

	cm.mu.Lock()
	if !cm.connections[c] {
		cm.mu.Unlock()
		return
	}
	if m.PlayerID != "" {
		cm.identifyLocked(c, m.PlayerID)
	}
	cm.bindLocked(c, m.MatchID)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", c.ID).
		Str("match_id", m.MatchID).
		Str("player_id", m.PlayerID).
		Msg("connection joined match")

	c.sendScore(newScoreUpdate(room), true)
}
