package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"evcentral/internal"
	"evcentral/internal/config"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

const (
	apiEndpoint = "/api"
)

var ErrBadCommand = errors.New("bad command")

// Command a remote command for a connected charge point. Payload is feature specific:
// id tag, transaction id, reset type, trigger name, "key=value" or a comma separated key list.
type Command struct {
	ChargePointId string `json:"charge_point_id"`
	ConnectorId   int    `json:"connector_id"`
	FeatureName   string `json:"feature_name"`
	Payload       string `json:"payload"`
}

type CommandResult struct {
	MessageId string          `json:"message_id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type RequestHandler func(ctx context.Context, command *Command) (*CommandResult, error)

type Api struct {
	conf           *config.Config
	httpServer     *http.Server
	requestHandler RequestHandler
	logger         internal.LogHandler
}

func NewServerApi(conf *config.Config, logger internal.LogHandler) *Api {
	server := Api{
		conf:   conf,
		logger: logger,
	}
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: server.Handler(),
	}
	return &server
}

func (s *Api) SetRequestHandler(handler RequestHandler) {
	s.requestHandler = handler
}

func (s *Api) Handler() http.Handler {
	router := httprouter.New()
	router.POST(apiEndpoint, s.handleCommand)
	return router
}

func (s *Api) Start() error {
	var err error
	if s.conf.Api.TLS {
		cert, certErr := tls.LoadX509KeyPair(s.conf.Api.CertFile, s.conf.Api.KeyFile)
		if certErr != nil {
			return fmt.Errorf("api: failed to load certificate: %v", certErr)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Api) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Api) handleCommand(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error reading body from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var cmd Command
	if err = json.Unmarshal(body, &cmd); err != nil {
		s.logger.Warn(fmt.Sprintf("api: error parsing command from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.requestHandler == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	result, err := s.requestHandler(r.Context(), &cmd)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error sending command %s to %s: %s", cmd.FeatureName, cmd.ChargePointId, err))
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err = json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("api: writing response", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadCommand):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConnected):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
