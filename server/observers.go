package server

import (
	"encoding/json"
	"evcentral/internal"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const observerBuffer = 64

// Envelope is what observers receive for every broadcast.
type Envelope struct {
	ChargePointId string      `json:"charge_point_id"`
	Topic         string      `json:"topic"`
	Payload       interface{} `json:"payload"`
}

type observer struct {
	conn   *websocket.Conn
	topics map[string]bool
	send   chan []byte
}

func (o *observer) wants(topic string) bool {
	return len(o.topics) == 0 || o.topics[topic]
}

// Observers fans charge point events out to websocket subscribers on /observe/:id.
// A subscriber may narrow the stream with one or more topic query parameters.
type Observers struct {
	upgrader    websocket.Upgrader
	logger      internal.LogHandler
	mux         sync.RWMutex
	subscribers map[string]map[*observer]struct{}
}

func NewObservers(logger internal.LogHandler) *Observers {
	return &Observers{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:      logger,
		subscribers: make(map[string]map[*observer]struct{}),
	}
}

// Broadcast never blocks: a subscriber whose buffer is full misses the message.
func (o *Observers) Broadcast(chargePointId, topic string, payload interface{}) error {
	o.mux.RLock()
	defer o.mux.RUnlock()
	subscribers := o.subscribers[chargePointId]
	if len(subscribers) == 0 {
		return nil
	}
	data, err := json.Marshal(&Envelope{ChargePointId: chargePointId, Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}
	dropped := 0
	for sub := range subscribers {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%d observers of %s are lagging, %s event dropped", dropped, chargePointId, topic)
	}
	return nil
}

func (o *Observers) Count(chargePointId string) int {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return len(o.subscribers[chargePointId])
}

func (o *Observers) handleObserveRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Error("observer upgrade failed", err)
		return
	}
	sub := &observer{
		conn:   conn,
		topics: make(map[string]bool),
		send:   make(chan []byte, observerBuffer),
	}
	for _, topic := range r.URL.Query()["topic"] {
		sub.topics[topic] = true
	}
	o.add(id, sub)
	o.logger.Debug(fmt.Sprintf("observer %s subscribed to %s", r.RemoteAddr, id))

	go o.writer(sub)
	// observers only listen; reading detects the close
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	o.remove(id, sub)
	_ = conn.Close()
}

func (o *Observers) writer(sub *observer) {
	for data := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			o.logger.Debug(fmt.Sprintf("observer write: %s", err))
		}
	}
}

func (o *Observers) add(chargePointId string, sub *observer) {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.subscribers[chargePointId] == nil {
		o.subscribers[chargePointId] = make(map[*observer]struct{})
	}
	o.subscribers[chargePointId][sub] = struct{}{}
}

func (o *Observers) remove(chargePointId string, sub *observer) {
	o.mux.Lock()
	defer o.mux.Unlock()
	delete(o.subscribers[chargePointId], sub)
	if len(o.subscribers[chargePointId]) == 0 {
		delete(o.subscribers, chargePointId)
	}
	close(sub.send)
}
