package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// Room names. Every client joins the rooms derived from its identity:
// admins join "admin", everyone joins their own user room and their
// subscription room.
const (
	RoomAdmin = "admin"
)

// SubscriptionRoom returns the room of one subscription's members.
func SubscriptionRoom(subscriptionID uint) string {
	return fmt.Sprintf("sub:%d", subscriptionID)
}

// UserRoom returns the private room of one user.
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// LiveClient represents a websocket client connection
type LiveClient struct {
	conn   *websocket.Conn
	userID uint
	rooms  map[string]bool
	send   chan []byte
}

// LiveMessage is one event pushed to connected clients
type LiveMessage struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`

	rooms []string
}

// LiveService manages websocket connections and pushes events to rooms.
// Delivery is fire-and-forget: clients that cannot keep up are dropped.
type LiveService struct {
	logger     *utils.Logger
	clients    map[*LiveClient]bool
	register   chan *LiveClient
	unregister chan *LiveClient
	publish    chan *LiveMessage
	mutex      sync.RWMutex
}

// NewLiveService creates the live push service and starts its hub loop.
func NewLiveService(logger *utils.Logger) *LiveService {
	service := &LiveService{
		logger:     logger.Named("live_service"),
		clients:    make(map[*LiveClient]bool),
		register:   make(chan *LiveClient),
		unregister: make(chan *LiveClient),
		publish:    make(chan *LiveMessage, 256),
	}

	go service.run()
	return service
}

// RegisterClient adds a new websocket client and joins it to the rooms
// its identity entitles it to.
func (s *LiveService) RegisterClient(conn *websocket.Conn, user *models.User) *LiveClient {
	rooms := map[string]bool{
		UserRoom(user.ID): true,
	}
	if user.Role.CanSeeAllSubscriptions() {
		rooms[RoomAdmin] = true
	}
	if user.SubscriptionID != nil {
		rooms[SubscriptionRoom(*user.SubscriptionID)] = true
	}

	client := &LiveClient{
		conn:   conn,
		userID: user.ID,
		rooms:  rooms,
		send:   make(chan []byte, 256),
	}

	s.register <- client

	go s.readPump(client)
	go s.writePump(client)

	return client
}

// PublishNotification pushes a device report to the device's
// subscription room and the admin room.
func (s *LiveService) PublishNotification(device *models.Device, values map[string]float64, at time.Time) {
	payload := map[string]interface{}{
		"device": device.ExternalID,
		"values": values,
		"time":   at,
	}
	s.emit(&LiveMessage{
		Event:     fmt.Sprintf("notification/%s", device.ExternalID),
		Timestamp: time.Now(),
		Payload:   payload,
		rooms:     []string{RoomAdmin, SubscriptionRoom(device.SubscriptionID)},
	})
	s.emit(&LiveMessage{
		Event:     "device/notification",
		Timestamp: time.Now(),
		Payload:   payload,
		rooms:     []string{RoomAdmin, SubscriptionRoom(device.SubscriptionID)},
	})
}

// PublishAlertTriggered pushes a fired alert to the owning user and the
// admin room.
func (s *LiveService) PublishAlertTriggered(rule *models.AlertRule, value float64, at time.Time) {
	s.emit(&LiveMessage{
		Event:     "alert/triggered",
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"alert_rule_id": rule.ID,
			"device_id":     rule.DeviceID,
			"accessor":      rule.Accessor,
			"condition":     rule.Condition,
			"threshold":     rule.Threshold,
			"value":         value,
			"time":          at,
		},
		rooms: []string{RoomAdmin, UserRoom(rule.UserID)},
	})
}

// PublishLifecycle pushes a device connectivity transition to the
// device's subscription room and the admin room.
func (s *LiveService) PublishLifecycle(device *models.Device, event kafka.LifecycleEvent, at time.Time) {
	s.emit(&LiveMessage{
		Event:     fmt.Sprintf("device/%s", event),
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"device": device.ExternalID,
			"event":  string(event),
			"time":   at,
		},
		rooms: []string{RoomAdmin, SubscriptionRoom(device.SubscriptionID)},
	})
}

// PublishReportGenerated announces a freshly generated consumption
// report to the subscription's members and the admin room.
func (s *LiveService) PublishReportGenerated(report *models.Report) {
	s.emit(&LiveMessage{
		Event:     "report/generated",
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"report_id":      report.ID,
			"period_start":   report.PeriodStart,
			"period_end":     report.PeriodEnd,
			"total_consumed": report.TotalConsumed,
			"total_cost":     report.TotalCost,
			"currency":       report.Currency,
		},
		rooms: []string{RoomAdmin, SubscriptionRoom(report.SubscriptionID)},
	})
}

// emit queues a message without blocking the caller.
func (s *LiveService) emit(message *LiveMessage) {
	select {
	case s.publish <- message:
	default:
		s.logger.Warn("live publish queue full, dropping message",
			zap.String("event", message.Event))
	}
}

// run processes registrations and message fan-out in the hub loop
func (s *LiveService) run() {
	for {
		select {
		case client := <-s.register:
			s.mutex.Lock()
			s.clients[client] = true
			s.mutex.Unlock()
			s.logger.Debug("Client registered", zap.Uint("user_id", client.userID))

		case client := <-s.unregister:
			s.mutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mutex.Unlock()
			s.logger.Debug("Client unregistered", zap.Uint("user_id", client.userID))

		case message := <-s.publish:
			s.deliver(message)
		}
	}
}

// deliver sends a message to every client in any of its target rooms
func (s *LiveService) deliver(message *LiveMessage) {
	jsonMessage, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal live message",
			zap.Error(err), zap.String("event", message.Event))
		return
	}

	s.mutex.RLock()
	var full []*LiveClient
	for client := range s.clients {
		if !clientInRooms(client, message.rooms) {
			continue
		}
		select {
		case client.send <- jsonMessage:
		default:
			full = append(full, client)
		}
	}
	s.mutex.RUnlock()

	// Drop clients whose buffers are full
	if len(full) > 0 {
		s.mutex.Lock()
		for _, client := range full {
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.logger.Warn("Client buffer full, connection closed",
					zap.Uint("user_id", client.userID))
			}
		}
		s.mutex.Unlock()
	}
}

func clientInRooms(client *LiveClient, rooms []string) bool {
	for _, room := range rooms {
		if client.rooms[room] {
			return true
		}
	}
	return false
}

// readPump reads messages from the client, keeping the connection alive.
// Clients do not send application messages; only control frames matter.
func (s *LiveService) readPump(client *LiveClient) {
	defer func() {
		s.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.logger.Warn("Unexpected websocket close",
					zap.Error(err), zap.Uint("user_id", client.userID))
			}
			break
		}
	}
}

// writePump writes messages to the client
func (s *LiveService) writePump(client *LiveClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any queued messages into the same frame batch
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
