package server

import (
	"context"
	"errors"
	"evcentral/correlator"
	"evcentral/handlers"
	"evcentral/hooks"
	"evcentral/internal"
	"evcentral/internal/config"
	"evcentral/internal/memory"
	"evcentral/maintenance"
	"evcentral/metrics"
	"evcentral/ocpp"
	"evcentral/ocpp/core"
	"evcentral/ocpp/remotetrigger"
	"evcentral/tasks"
	"evcentral/types"
	"evcentral/utility"
	"fmt"
	"strings"
	"time"
)

const shutdownTimeout = 10 * time.Second

type CentralSystem struct {
	conf       *config.Config
	server     *Server
	api        *Api
	correlator *correlator.Correlator
	queue      *tasks.Queue
	scheduler  *maintenance.Scheduler
	closers    []func() error
	logger     internal.LogHandler
}

func NewCentralSystem(conf *config.Config, logger internal.LogHandler) (*CentralSystem, error) {
	cs := &CentralSystem{conf: conf, logger: logger}

	var database internal.Database
	if conf.Mongo.Enabled {
		mongoClient, err := internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %w", err)
		}
		cs.closers = append(cs.closers, mongoClient.Close)
		database = mongoClient
		logger.Debug("mongodb is configured and enabled")
	} else {
		database = memory.NewStore()
		logger.Warn("mongodb is disabled, records are kept in memory")
	}

	registry, err := hooks.FromConfig(conf, database, logger)
	if err != nil {
		return nil, fmt.Errorf("hook registry: %w", err)
	}

	cs.queue = tasks.New(tasks.Options{
		Workers:     conf.Tasks.Workers,
		QueueSize:   conf.Tasks.QueueSize,
		MaxAttempts: conf.Tasks.MaxAttempts,
		BaseDelay:   conf.Tasks.BaseDelay,
		Rate:        conf.Tasks.Rate,
	}, logger)

	authorization := hooks.NewAuthorizationManager(registry, cs.queue, logger)
	authorization.SetDatabase(database)
	stateChanges := hooks.NewStateChangeManager(registry, cs.queue, logger)
	stateChanges.SetDatabase(database)
	cs.queue.Register(hooks.TaskAuthorizationHook, authorization.RunAsync)
	cs.queue.Register(hooks.TaskStateChangeHook, stateChanges.RunAsync)

	observers := NewObservers(logger)

	systemHandler := handlers.NewSystemHandler(database, authorization, stateChanges, logger)
	systemHandler.SetParameters(conf.HeartbeatInterval, conf.AcceptUnknownChp)
	systemHandler.SetMessageService(observers)

	cs.correlator = correlator.New(logger)
	cs.correlator.SetDatabase(database)

	dispatcher := NewDispatcher(systemHandler.Registry(), cs.correlator, logger)
	dispatcher.SetDatabase(database)

	cs.server = NewServer(conf, dispatcher, systemHandler, observers, logger)
	cs.server.AddSupportedSubProtocol(types.SubProtocol16)

	if conf.Api.Enabled {
		cs.api = NewServerApi(conf, logger)
		cs.api.SetRequestHandler(cs.SendCommand)
	}

	cs.scheduler = maintenance.NewScheduler(conf, database, cs.correlator, logger)

	return cs, nil
}

// SendCommand sends a server-initiated call and waits a bounded time for the answer.
// A missing answer is not an error: the result then reports the call as sent.
func (cs *CentralSystem) SendCommand(ctx context.Context, command *Command) (*CommandResult, error) {
	if command.ChargePointId == "" {
		return nil, fmt.Errorf("%w: charge point id is empty", ErrBadCommand)
	}
	request, err := buildRequest(command)
	if err != nil {
		return nil, err
	}
	pending, err := cs.correlator.Send(command.ChargePointId, request, cs.server.SendTo)
	if err != nil {
		return nil, err
	}
	cs.logger.FeatureEvent(request.GetFeatureName(), command.ChargePointId, fmt.Sprintf("command sent: %s", pending.MessageId))

	result := &CommandResult{MessageId: pending.MessageId}
	timeout := cs.conf.Api.ResponseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := pending.Wait(waitCtx)
	if response == nil {
		cs.logger.Warn(fmt.Sprintf("no response from %s to %s: %s", command.ChargePointId, pending.MessageId, err))
		result.Status = "sent"
		result.Error = err.Error()
		return result, nil
	}
	result.Status = response.Status
	result.Payload = response.Payload
	result.ErrorCode = string(response.ErrorCode)
	if err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

func buildRequest(command *Command) (ocpp.Request, error) {
	payload := strings.TrimSpace(command.Payload)
	switch command.FeatureName {
	case core.RemoteStartTransactionFeatureName:
		if payload == "" {
			return nil, fmt.Errorf("%w: id tag is empty", ErrBadCommand)
		}
		return core.NewRemoteStartTransactionRequest(payload, command.ConnectorId), nil
	case core.RemoteStopTransactionFeatureName:
		transactionId := utility.ToInt(payload)
		if transactionId <= 0 {
			return nil, fmt.Errorf("%w: invalid transaction id %q", ErrBadCommand, payload)
		}
		return core.NewRemoteStopTransactionRequest(transactionId), nil
	case core.ResetFeatureName:
		return core.NewResetRequest(core.ResetType(payload)), nil
	case remotetrigger.TriggerMessageFeatureName:
		trigger := remotetrigger.MessageTrigger(payload)
		if !remotetrigger.IsValidTrigger(trigger) {
			return nil, fmt.Errorf("%w: unknown trigger %q", ErrBadCommand, payload)
		}
		connectorId := command.ConnectorId
		if connectorId == 0 {
			connectorId = -1
		}
		return remotetrigger.NewTriggerMessageRequest(trigger, connectorId), nil
	case core.ChangeConfigurationFeatureName:
		key, value, ok := strings.Cut(payload, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrBadCommand, payload)
		}
		return core.NewChangeConfigurationRequest(strings.TrimSpace(key), strings.TrimSpace(value)), nil
	case core.GetConfigurationFeatureName:
		var keys []string
		for _, key := range strings.Split(payload, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
		return core.NewGetConfigurationRequest(keys), nil
	case "":
		return nil, fmt.Errorf("%w: feature name is empty", ErrBadCommand)
	}
	return nil, fmt.Errorf("%w: feature not supported: %s", ErrBadCommand, command.FeatureName)
}

// Start runs every listener until ctx is cancelled or one of them fails, then shuts down.
func (cs *CentralSystem) Start(ctx context.Context) error {
	cs.queue.Start()
	if err := cs.scheduler.Start(); err != nil {
		return fmt.Errorf("maintenance scheduler: %w", err)
	}

	failed := make(chan error, 3)
	go func() {
		if err := cs.server.Start(); err != nil {
			failed <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	if cs.api != nil {
		go func() {
			if err := cs.api.Start(); err != nil {
				failed <- fmt.Errorf("api server: %w", err)
			}
		}()
	}
	go func() {
		if err := metrics.Listen(cs.conf, cs.logger); err != nil {
			failed <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		cs.logger.Debug("shutting down central system")
	case err = <-failed:
		cs.logger.Error("central system stopped", err)
	}
	cs.shutdown()
	return err
}

func (cs *CentralSystem) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := cs.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket server: %w", err))
	}
	if cs.api != nil {
		if err := cs.api.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server: %w", err))
		}
	}
	cs.scheduler.Stop()
	cs.queue.Close()
	for _, closer := range cs.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		cs.logger.Error("shutdown", err)
	}
}
