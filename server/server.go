package server

import (
	"context"
	"errors"
	"evcentral/internal"
	"evcentral/internal/config"
	"evcentral/metrics/counters"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	wsEndpoint      = "/ws/:id"
	observeEndpoint = "/observe/:id"
)

var ErrNotConnected = errors.New("charge point not connected")

// ConnectionHandler admits charge points and tracks their connection state.
type ConnectionHandler interface {
	OnConnect(ctx context.Context, chargePointId string) error
	OnDisconnect(ctx context.Context, chargePointId string)
}

type Server struct {
	conf        *config.Config
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	dispatcher  *Dispatcher
	connections ConnectionHandler
	observers   *Observers
	logger      internal.LogHandler
	mux         sync.RWMutex
	sockets     map[string]*WebSocket
	// handshakes in progress per charge point; a socket closing meanwhile leaves
	// its disconnect to them
	connecting map[string]int
	deferred   map[string]bool
}

type WebSocket struct {
	conn     *websocket.Conn
	id       string
	writeMux sync.Mutex
}

func (ws *WebSocket) ID() string {
	return ws.id
}

// Write sends one text frame; gorilla connections allow a single concurrent writer.
func (ws *WebSocket) Write(data []byte) error {
	ws.writeMux.Lock()
	defer ws.writeMux.Unlock()
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func NewServer(conf *config.Config, dispatcher *Dispatcher, connections ConnectionHandler, observers *Observers, logger internal.LogHandler) *Server {
	server := Server{
		conf:        conf,
		upgrader:    websocket.Upgrader{Subprotocols: []string{}},
		dispatcher:  dispatcher,
		connections: connections,
		observers:   observers,
		logger:      logger,
		sockets:     make(map[string]*WebSocket),
		connecting:  make(map[string]int),
		deferred:    make(map[string]bool),
	}
	server.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}
	return &server
}

func (s *Server) AddSupportedSubProtocol(proto string) {
	if slices.Contains(s.upgrader.Subprotocols, proto) {
		return
	}
	s.upgrader.Subprotocols = append(s.upgrader.Subprotocols, proto)
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET(wsEndpoint, s.handleWsRequest)
	if s.observers != nil {
		router.GET(observeEndpoint, s.observers.handleObserveRequest)
	}
}

func (s *Server) handleWsRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	s.logger.Debug(fmt.Sprintf("connection initiated from remote %s for %s", r.RemoteAddr, id))

	s.handshake(id)
	if err := s.connections.OnConnect(r.Context(), id); err != nil {
		s.logger.Warn(fmt.Sprintf("connection of %s rejected: %s", id, err))
		if s.abandon(id, false) {
			s.connections.OnDisconnect(context.Background(), id)
		}
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, s.negotiate(r))
	if err != nil {
		s.logger.Error("upgrade failed", err)
		if s.abandon(id, true) {
			s.connections.OnDisconnect(context.Background(), id)
		}
		return
	}

	s.logger.Debug(fmt.Sprintf("upgraded socket for %s and ready to receive data", id))
	ws := &WebSocket{
		conn: conn,
		id:   id,
	}
	s.attach(ws)
	go s.messageReader(ws)
}

// negotiate picks the first subprotocol offered by the client that the server supports.
func (s *Server) negotiate(r *http.Request) http.Header {
	requestedProto := ""
	for _, proto := range websocket.Subprotocols(r) {
		if len(s.upgrader.Subprotocols) == 0 {
			// supporting all protocols
			requestedProto = proto
			break
		}
		if slices.Contains(s.upgrader.Subprotocols, proto) {
			requestedProto = proto
			break
		}
	}
	responseHeader := http.Header{}
	if requestedProto != "" {
		responseHeader.Add("Sec-WebSocket-Protocol", requestedProto)
	}
	return responseHeader
}

func (s *Server) handshake(id string) {
	s.mux.Lock()
	s.connecting[id]++
	s.mux.Unlock()
}

func (s *Server) finishHandshake(id string) {
	if s.connecting[id] <= 1 {
		delete(s.connecting, id)
		return
	}
	s.connecting[id]--
}

// abandon ends a failed handshake and reports whether the charge point is left without
// a socket and must be marked disconnected.
func (s *Server) abandon(id string, connected bool) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.finishHandshake(id)
	if s.connecting[id] > 0 {
		return false
	}
	if _, ok := s.sockets[id]; ok {
		return false
	}
	disconnect := connected || s.deferred[id]
	delete(s.deferred, id)
	return disconnect
}

// attach completes a handshake, replacing any previous socket of the charge point.
func (s *Server) attach(ws *WebSocket) {
	s.mux.Lock()
	s.finishHandshake(ws.id)
	delete(s.deferred, ws.id)
	previous, ok := s.sockets[ws.id]
	s.sockets[ws.id] = ws
	count := len(s.sockets)
	s.mux.Unlock()

	if ok {
		s.logger.Warn(fmt.Sprintf("%s reconnected, closing previous socket", ws.id))
		_ = previous.conn.Close()
	}
	counters.ObserveConnections(count)
}

// detach reports whether the charge point has to be marked disconnected: ws was still
// its registered socket and no newer handshake is under way.
func (s *Server) detach(ws *WebSocket) bool {
	s.mux.Lock()
	current, ok := s.sockets[ws.id]
	registered := ok && current == ws
	if registered {
		delete(s.sockets, ws.id)
	}
	pending := registered && s.connecting[ws.id] > 0
	if pending {
		s.deferred[ws.id] = true
	}
	count := len(s.sockets)
	s.mux.Unlock()

	counters.ObserveConnections(count)
	return registered && !pending
}

func (s *Server) messageReader(ws *WebSocket) {
	conn := ws.conn
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, 3001) {
				s.logger.Debug(fmt.Sprintf("id %s leaving session", ws.id))
			} else {
				s.logger.Debug(fmt.Sprintf("id %s is closing session %s", ws.id, err))
			}
			if err = conn.Close(); err != nil {
				s.logger.Debug(fmt.Sprintf("closing socket %s: %s", ws.id, err))
			}
			if s.detach(ws) {
				s.connections.OnDisconnect(context.Background(), ws.id)
			}
			return
		}
		s.logger.RawDataEvent("IN", string(message))
		reply := s.dispatcher.Process(context.Background(), ws.id, message)
		if reply == nil {
			continue
		}
		s.logger.RawDataEvent("OUT", string(reply))
		if err = ws.Write(reply); err != nil {
			s.logger.Error(fmt.Sprintf("sending reply to %s", ws.id), err)
		}
	}
}

// SendTo writes an encoded frame to a connected charge point.
func (s *Server) SendTo(chargePointId string, data []byte) error {
	s.mux.RLock()
	ws, ok := s.sockets[chargePointId]
	s.mux.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, chargePointId)
	}
	s.logger.RawDataEvent("OUT", string(data))
	return ws.Write(data)
}

func (s *Server) IsConnected(chargePointId string) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	_, ok := s.sockets[chargePointId]
	return ok
}

func (s *Server) Start() error {
	if s.conf == nil {
		return errors.New("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Listen.TLS {
		s.logger.Debug("starting https TLS server")
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
