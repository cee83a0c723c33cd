package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/processor"
	"github.com/anvers/formcoach/server/store"
)

// WebSocketHandler is the UI bridge: the mobile/web client pushes pose
// frames and device telemetry up and receives engine snapshots back.
type WebSocketHandler struct {
	engine   *store.Engine
	ingestor *processor.Ingestor
	logger   *zap.Logger
	upgrader websocket.Upgrader

	snapshotInterval time.Duration
}

type ClientMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsClient serializes writes; gorilla connections do not allow concurrent
// writers and both the read loop and the push routine send messages.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWebSocketHandler(engine *store.Engine, ingestor *processor.Ingestor, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		ingestor: ingestor,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		snapshotInterval: 500 * time.Millisecond,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	clientID := uuid.NewString()
	h.logger.Info("client connected",
		zap.String("client_id", clientID),
		zap.String("client_ip", c.ClientIP()))

	conn.SetReadLimit(1 * 1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	go h.pushRoutine(client, done)

	for {
		var message ClientMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error", zap.Error(err))
			}
			close(done)
			h.logger.Info("client disconnected", zap.String("client_id", clientID))
			return
		}
		h.handleMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleMessage(client *wsClient, message *ClientMessage) {
	switch message.Type {
	case "frame":
		h.handleFrame(client, message)
	case "telemetry":
		h.handleTelemetry(client, message)
	case "snapshot":
		h.sendMessage(client, "snapshot", h.engine.Snapshot())
	case "ping":
		h.sendMessage(client, "pong", map[string]any{"timestamp": time.Now().Unix()})
	default:
		h.logger.Warn("unknown message type", zap.String("type", message.Type))
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) handleFrame(client *wsClient, message *ClientMessage) {
	var frame models.PoseFrame
	if err := json.Unmarshal(message.Data, &frame); err != nil {
		h.logger.Error("invalid frame payload", zap.Error(err))
		h.sendError(client, "invalid frame payload")
		return
	}
	if frame.Timestamp == 0 {
		frame.Timestamp = message.Timestamp
	}
	if !h.ingestor.IngestFrame(frame) {
		h.sendError(client, "frame dropped, ingestion queue full")
	}
}

func (h *WebSocketHandler) handleTelemetry(client *wsClient, message *ClientMessage) {
	var sample models.TelemetrySample
	if err := json.Unmarshal(message.Data, &sample); err != nil {
		h.logger.Error("invalid telemetry payload", zap.Error(err))
		h.sendError(client, "invalid telemetry payload")
		return
	}
	h.ingestor.IngestTelemetry(sample)
}

// pushRoutine pushes engine snapshots and alert states on a fixed cadence,
// and keeps the connection alive with pings.
func (h *WebSocketHandler) pushRoutine(client *wsClient, done chan struct{}) {
	snapshots := time.NewTicker(h.snapshotInterval)
	pings := time.NewTicker(54 * time.Second)
	defer snapshots.Stop()
	defer pings.Stop()

	for {
		select {
		case <-snapshots.C:
			h.sendMessage(client, "snapshot", h.engine.Snapshot())
			h.sendMessage(client, "alerts", h.engine.Perf.RecomputeAlerts())
		case <-pings.C:
			client.writeMu.Lock()
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := client.conn.WriteMessage(websocket.PingMessage, nil)
			client.writeMu.Unlock()
			if err != nil {
				h.logger.Error("failed to send ping", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) sendMessage(client *wsClient, messageType string, data any) {
	message := ServerMessage{Type: messageType, Data: data}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	if err := client.conn.WriteJSON(message); err != nil {
		h.logger.Error("failed to send websocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(client *wsClient, errorMsg string) {
	h.sendMessage(client, "error", map[string]any{
		"message":   errorMsg,
		"timestamp": time.Now().Unix(),
	})
}
