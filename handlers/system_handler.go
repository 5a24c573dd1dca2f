package handlers

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/hooks"
	"evcentral/internal"
	"evcentral/ocpp/core"
	"evcentral/ocpp/firmware"
	"evcentral/types"
	"evcentral/utility"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const defaultHeartbeatInterval = 300

var (
	ErrUnknownChargePoint  = errors.New("unknown charge point")
	ErrChargePointDisabled = errors.New("charge point disabled")
)

type SystemHandler struct {
	database          internal.Database
	logger            internal.LogHandler
	messages          internal.MessageService
	authorization     *hooks.AuthorizationManager
	stateChanges      *hooks.StateChangeManager
	heartbeatInterval int
	acceptUnknown     bool
	locks             sync.Map
	now               func() time.Time
}

func NewSystemHandler(database internal.Database, authorization *hooks.AuthorizationManager, stateChanges *hooks.StateChangeManager, logger internal.LogHandler) *SystemHandler {
	return &SystemHandler{
		database:          database,
		logger:            logger,
		authorization:     authorization,
		stateChanges:      stateChanges,
		heartbeatInterval: defaultHeartbeatInterval,
		now:               time.Now,
	}
}

func (h *SystemHandler) SetMessageService(messages internal.MessageService) {
	h.messages = messages
}

// SetParameters heartbeat interval sent in boot responses; acceptUnknown allows unknown
// charge points to register on connect
func (h *SystemHandler) SetParameters(heartbeatInterval int, acceptUnknown bool) {
	if heartbeatInterval > 0 {
		h.heartbeatInterval = heartbeatInterval
	}
	h.acceptUnknown = acceptUnknown
}

// Registry returns the action table served by this handler.
func (h *SystemHandler) Registry() *Registry {
	return NewRegistry(map[string]Handler{
		core.BootNotificationFeatureName:                  Typed(h.OnBootNotification),
		core.HeartbeatFeatureName:                         Typed(h.OnHeartbeat),
		core.AuthorizeFeatureName:                         Typed(h.OnAuthorize),
		core.StartTransactionFeatureName:                  Typed(h.OnStartTransaction),
		core.StopTransactionFeatureName:                   Typed(h.OnStopTransaction),
		core.MeterValuesFeatureName:                       Typed(h.OnMeterValues),
		core.StatusNotificationFeatureName:                Typed(h.OnStatusNotification),
		core.DataTransferFeatureName:                      Typed(h.OnDataTransfer),
		firmware.DiagnosticsStatusNotificationFeatureName: Typed(h.OnDiagnosticsStatusNotification),
		firmware.StatusNotificationFeatureName:            Typed(h.OnFirmwareStatusNotification),
	})
}

func (h *SystemHandler) lock(chargePointId string) func() {
	value, _ := h.locks.LoadOrStore(chargePointId, &sync.Mutex{})
	mux := value.(*sync.Mutex)
	mux.Lock()
	return mux.Unlock
}

// OnConnect admits a charge point opening its websocket.
func (h *SystemHandler) OnConnect(ctx context.Context, chargePointId string) error {
	unlock := h.lock(chargePointId)
	defer unlock()

	chargePoint, err := h.database.GetChargePoint(chargePointId)
	if errors.Is(err, internal.ErrNotFound) {
		if !h.acceptUnknown {
			return ErrUnknownChargePoint
		}
		chargePoint, err = h.register(chargePointId)
	}
	if err != nil {
		return err
	}
	if !chargePoint.IsEnabled {
		return ErrChargePointDisabled
	}
	flipped := markConnected(chargePoint, true)
	chargePoint.EventTime = h.now()
	h.updateChargePoint(chargePoint)
	if flipped {
		h.connectionChanged(ctx, chargePoint, "connect")
	}
	return nil
}

// OnDisconnect marks the charge point offline after its websocket closed.
func (h *SystemHandler) OnDisconnect(ctx context.Context, chargePointId string) {
	unlock := h.lock(chargePointId)
	defer unlock()

	chargePoint, err := h.database.GetChargePoint(chargePointId)
	if err != nil {
		h.logger.Error(fmt.Sprintf("disconnect %s", chargePointId), err)
		return
	}
	if !markConnected(chargePoint, false) {
		return
	}
	chargePoint.EventTime = h.now()
	h.updateChargePoint(chargePoint)
	h.connectionChanged(ctx, chargePoint, "disconnect")
}

func (h *SystemHandler) OnBootNotification(ctx context.Context, chargePointId string, request *core.BootNotificationRequest) (*core.BootNotificationResponse, error) {
	unlock := h.lock(chargePointId)
	defer unlock()

	chargePoint, err := h.chargePoint(chargePointId)
	if err != nil {
		return nil, err
	}
	now := h.now()
	chargePoint.Vendor = request.ChargePointVendor
	chargePoint.Model = request.ChargePointModel
	chargePoint.SerialNumber = request.ChargePointSerialNumber
	chargePoint.ChargeBoxSerialNumber = request.ChargeBoxSerialNumber
	chargePoint.FirmwareVersion = request.FirmwareVersion
	chargePoint.Iccid = request.Iccid
	chargePoint.Imsi = request.Imsi
	chargePoint.MeterType = request.MeterType
	chargePoint.MeterSerialNumber = request.MeterSerialNumber
	chargePoint.LastHeartbeat = now
	chargePoint.EventTime = now
	flipped := markConnected(chargePoint, true)
	h.updateChargePoint(chargePoint)
	if flipped {
		h.connectionChanged(ctx, chargePoint, "boot_notification")
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("%s %s, firmware %s", request.ChargePointVendor, request.ChargePointModel, request.FirmwareVersion))
	return core.NewBootNotificationResponse(types.NewDateTime(now), h.heartbeatInterval, core.RegistrationStatusAccepted), nil
}

func (h *SystemHandler) OnHeartbeat(ctx context.Context, chargePointId string, request *core.HeartbeatRequest) (*core.HeartbeatResponse, error) {
	unlock := h.lock(chargePointId)
	defer unlock()

	chargePoint, err := h.chargePoint(chargePointId)
	if err != nil {
		return nil, err
	}
	now := h.now()
	chargePoint.LastHeartbeat = now
	flipped := markConnected(chargePoint, true)
	h.updateChargePoint(chargePoint)
	if flipped {
		h.connectionChanged(ctx, chargePoint, "heartbeat")
	}
	h.logger.Debug(fmt.Sprintf("heartbeat from %s", chargePointId))
	return core.NewHeartbeatResponse(types.NewDateTime(now)), nil
}

func (h *SystemHandler) OnAuthorize(ctx context.Context, chargePointId string, request *core.AuthorizeRequest) (*core.AuthorizeResponse, error) {
	decision := h.authorization.ExecuteSync(ctx, chargePointId, request.IdTag)

	authorization := &entity.Authorization{
		Id:            utility.NewUUID(),
		ChargePointId: chargePointId,
		IdTag:         request.IdTag,
		Status:        string(decision.Status),
		ExpiryDate:    decision.Expiry,
		CreatedAt:     h.now(),
	}
	if err := h.database.AddAuthorization(authorization); err != nil {
		h.logger.Error(fmt.Sprintf("save authorization of %s", request.IdTag), err)
	} else {
		h.authorization.ExecuteAsync(ctx, authorization.Id)
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("id tag: %s; authorization status: %s", request.IdTag, decision.Status))
	return core.NewAuthorizationResponse(decision.IdTagInfo()), nil
}

func (h *SystemHandler) OnStartTransaction(_ context.Context, chargePointId string, request *core.StartTransactionRequest) (*core.StartTransactionResponse, error) {
	unlock := h.lock(chargePointId)
	defer unlock()

	chargePoint, err := h.chargePoint(chargePointId)
	if err != nil {
		return nil, err
	}
	transaction := &entity.Transaction{
		ChargePointId: chargePointId,
		ConnectorId:   request.ConnectorId,
		IdTag:         request.IdTag,
		ReservationId: request.ReservationId,
		Status:        entity.TransactionStatusActive,
		MeterStart:    request.MeterStart,
		TimeStart:     request.Timestamp.OrNow(),
	}
	if err = h.database.AddTransaction(transaction); err != nil {
		return nil, fmt.Errorf("add transaction: %w", err)
	}

	chargePoint.Status = string(core.ChargePointStatusCharging)
	chargePoint.EventTime = h.now()
	h.updateChargePoint(chargePoint)

	h.broadcast(chargePointId, internal.TopicSessions, &SessionEvent{
		Event: SessionStarted,
		Session: &SessionState{
			Id:          transaction.Id,
			ConnectorId: transaction.ConnectorId,
			IdTag:       transaction.IdTag,
			StartedAt:   transaction.TimeStart,
			MeterStart:  transaction.MeterStart,
		},
	})

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("started transaction #%d for connector %d", transaction.Id, transaction.ConnectorId))
	return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted), transaction.Id), nil
}

func (h *SystemHandler) OnStopTransaction(_ context.Context, chargePointId string, request *core.StopTransactionRequest) (*core.StopTransactionResponse, error) {
	unlock := h.lock(chargePointId)
	defer unlock()

	transaction, err := h.database.GetTransaction(chargePointId, request.TransactionId)
	if errors.Is(err, internal.ErrNotFound) {
		h.logger.Warn(fmt.Sprintf("%s: transaction #%d not found", chargePointId, request.TransactionId))
		return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusInvalid)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction #%d: %w", request.TransactionId, err)
	}
	if !transaction.IsActive() {
		h.logger.Warn(fmt.Sprintf("%s: transaction #%d is already finished", chargePointId, transaction.Id))
		return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted)), nil
	}

	transaction.Stop(request.MeterStop, string(request.Reason), h.now())
	if err = h.database.UpdateTransaction(transaction); err != nil {
		return nil, fmt.Errorf("update transaction #%d: %w", transaction.Id, err)
	}

	// readings sent along with the stop request
	for _, meterValue := range request.TransactionData {
		h.saveMeterValues(chargePointId, transaction.ConnectorId, &transaction.Id, meterValue, types.ReadingContextTransactionEnd)
	}

	active, err := h.database.CountActiveTransactions(chargePointId)
	if err != nil {
		h.logger.Error(fmt.Sprintf("count active transactions of %s", chargePointId), err)
	} else if active == 0 {
		if chargePoint, err := h.database.GetChargePoint(chargePointId); err == nil {
			chargePoint.Status = string(core.ChargePointStatusAvailable)
			chargePoint.EventTime = h.now()
			h.updateChargePoint(chargePoint)
		} else {
			h.logger.Error(fmt.Sprintf("get charge point %s", chargePointId), err)
		}
	}

	stoppedAt := transaction.TimeStop
	h.broadcast(chargePointId, internal.TopicSessions, &SessionEvent{
		Event: SessionStopped,
		Session: &SessionState{
			Id:             transaction.Id,
			ConnectorId:    transaction.ConnectorId,
			StartedAt:      transaction.TimeStart,
			MeterStart:     transaction.MeterStart,
			StoppedAt:      &stoppedAt,
			EnergyConsumed: transaction.EnergyConsumed,
			Duration:       transaction.Duration,
			Reason:         transaction.Reason,
		},
	})

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("stopped transaction #%d: %s; consumed %d Wh", transaction.Id, transaction.Reason, transaction.EnergyConsumed))
	return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted)), nil
}

func (h *SystemHandler) OnMeterValues(_ context.Context, chargePointId string, request *core.MeterValuesRequest) (*core.MeterValuesResponse, error) {
	transactionId := h.resolveTransaction(chargePointId, request.ConnectorId, request.TransactionId)
	for _, meterValue := range request.MeterValue {
		h.saveMeterValues(chargePointId, request.ConnectorId, transactionId, meterValue, types.ReadingContextSamplePeriodic)
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("connector %d: %d value sets", request.ConnectorId, len(request.MeterValue)))
	return core.NewMeterValuesResponse(), nil
}

// resolveTransaction finds the session readings belong to: the one named by id, else the
// active one on the connector, else none.
func (h *SystemHandler) resolveTransaction(chargePointId string, connectorId int, transactionId *int) *int {
	var transaction *entity.Transaction
	var err error
	if transactionId != nil {
		transaction, err = h.database.GetTransaction(chargePointId, *transactionId)
	} else {
		transaction, err = h.database.GetActiveTransaction(chargePointId, connectorId)
	}
	if err != nil {
		if !errors.Is(err, internal.ErrNotFound) {
			h.logger.Error(fmt.Sprintf("resolve transaction for %s@%d", chargePointId, connectorId), err)
		}
		return nil
	}
	return &transaction.Id
}

func (h *SystemHandler) saveMeterValues(chargePointId string, connectorId int, transactionId *int, meterValue types.MeterValue, readingContext types.ReadingContext) {
	timestamp := meterValue.Timestamp.OrNow()
	for _, sampledValue := range meterValue.SampledValue {
		if sampledValue.Malformed {
			h.logger.Warn(fmt.Sprintf("skipping malformed meter value of %s@%d", chargePointId, connectorId))
			continue
		}
		value := sampledValue.WithDefaults(readingContext)
		record := &entity.MeterValue{
			ChargePointId: chargePointId,
			ConnectorId:   connectorId,
			TransactionId: transactionId,
			Value:         value.Value,
			Measurand:     string(value.Measurand),
			Unit:          string(value.Unit),
			Context:       string(value.Context),
			Format:        string(value.Format),
			Location:      string(value.Location),
			Phase:         string(value.Phase),
			Timestamp:     timestamp,
		}
		if err := h.database.AddMeterValue(record); err != nil {
			h.logger.Error(fmt.Sprintf("save meter value of %s@%d", chargePointId, connectorId), err)
			continue
		}
		h.broadcast(chargePointId, internal.TopicMeterValues, &MeterValueEvent{
			ConnectorId:   connectorId,
			TransactionId: transactionId,
			Measurand:     record.Measurand,
			Value:         record.Value,
			Unit:          record.Unit,
			Phase:         record.Phase,
			Context:       record.Context,
			Timestamp:     timestamp,
		})
	}
}

func (h *SystemHandler) OnStatusNotification(ctx context.Context, chargePointId string, request *core.StatusNotificationRequest) (*core.StatusNotificationResponse, error) {
	unlock := h.lock(chargePointId)
	defer unlock()

	now := h.now()
	newStatus := string(request.Status)
	var oldStatus string
	if request.ConnectorId == 0 {
		chargePoint, err := h.chargePoint(chargePointId)
		if err != nil {
			return nil, err
		}
		oldStatus = chargePoint.Status
		chargePoint.Status = newStatus
		chargePoint.ErrorCode = string(request.ErrorCode)
		chargePoint.Info = request.Info
		chargePoint.EventTime = now
		h.updateChargePoint(chargePoint)
	} else {
		connector, err := h.database.GetConnector(chargePointId, request.ConnectorId)
		if errors.Is(err, internal.ErrNotFound) {
			connector, err = &entity.Connector{ChargePointId: chargePointId, Id: request.ConnectorId}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get connector %d: %w", request.ConnectorId, err)
		}
		oldStatus = connector.Status
		connector.Status = newStatus
		connector.ErrorCode = string(request.ErrorCode)
		connector.Info = request.Info
		connector.VendorId = request.VendorId
		connector.VendorErrorCode = request.VendorErrorCode
		connector.UpdatedAt = now
		if err = h.database.UpdateConnector(connector); err != nil {
			h.logger.Error(fmt.Sprintf("update connector %s@%d", chargePointId, request.ConnectorId), err)
		}
	}

	if oldStatus != newStatus {
		connectorId := request.ConnectorId
		h.recordStateChange(ctx, &entity.StateChange{
			ChargePointId: chargePointId,
			ChangeType:    entity.ChangeTypeStatus,
			ConnectorId:   &connectorId,
			OldValue:      oldStatus,
			NewValue:      newStatus,
			Metadata:      statusMetadata(request),
		})
	}

	h.broadcast(chargePointId, internal.TopicStatus, &StatusEvent{
		ConnectorId:     request.ConnectorId,
		Status:          newStatus,
		ErrorCode:       string(request.ErrorCode),
		Info:            request.Info,
		VendorId:        request.VendorId,
		VendorErrorCode: request.VendorErrorCode,
		Timestamp:       request.Timestamp.OrNow(),
	})

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("connector %d: %s -> %s", request.ConnectorId, oldStatus, newStatus))
	return core.NewStatusNotificationResponse(), nil
}

func statusMetadata(request *core.StatusNotificationRequest) map[string]string {
	metadata := map[string]string{"error_code": string(request.ErrorCode)}
	if request.Info != "" {
		metadata["info"] = request.Info
	}
	if request.VendorId != "" {
		metadata["vendor_id"] = request.VendorId
	}
	if request.VendorErrorCode != "" {
		metadata["vendor_error_code"] = request.VendorErrorCode
	}
	return metadata
}

func (h *SystemHandler) OnDataTransfer(_ context.Context, chargePointId string, request *core.DataTransferRequest) (*core.DataTransferResponse, error) {
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("vendor: %s; message: %s; data: %s", request.VendorId, request.MessageId, utility.Truncate(string(request.Data), 200)))
	return core.NewDataTransferResponse(core.DataTransferStatusAccepted), nil
}

func (h *SystemHandler) OnDiagnosticsStatusNotification(_ context.Context, chargePointId string, request *firmware.DiagnosticsStatusNotificationRequest) (*firmware.DiagnosticsStatusNotificationResponse, error) {
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("diagnostics status: %s", request.Status))
	return &firmware.DiagnosticsStatusNotificationResponse{}, nil
}

func (h *SystemHandler) OnFirmwareStatusNotification(_ context.Context, chargePointId string, request *firmware.StatusNotificationRequest) (*firmware.StatusNotificationResponse, error) {
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("firmware status: %s", request.Status))
	return &firmware.StatusNotificationResponse{}, nil
}

// chargePoint loads the charge point, registering it when it was admitted without a record.
func (h *SystemHandler) chargePoint(chargePointId string) (*entity.ChargePoint, error) {
	chargePoint, err := h.database.GetChargePoint(chargePointId)
	if errors.Is(err, internal.ErrNotFound) {
		return h.register(chargePointId)
	}
	if err != nil {
		return nil, fmt.Errorf("get charge point %s: %w", chargePointId, err)
	}
	return chargePoint, nil
}

func (h *SystemHandler) register(chargePointId string) (*entity.ChargePoint, error) {
	chargePoint := entity.NewChargePoint(chargePointId)
	if err := h.database.AddChargePoint(chargePoint); err != nil {
		return nil, fmt.Errorf("add charge point %s: %w", chargePointId, err)
	}
	h.logger.FeatureEvent("Register", chargePointId, "new charge point registered")
	return chargePoint, nil
}

func (h *SystemHandler) updateChargePoint(chargePoint *entity.ChargePoint) {
	if err := h.database.UpdateChargePoint(chargePoint); err != nil {
		h.logger.Error(fmt.Sprintf("update charge point %s", chargePoint.Id), err)
	}
}

func markConnected(chargePoint *entity.ChargePoint, connected bool) bool {
	flipped := chargePoint.IsConnected != connected
	chargePoint.IsConnected = connected
	return flipped
}

func (h *SystemHandler) connectionChanged(ctx context.Context, chargePoint *entity.ChargePoint, source string) {
	h.recordStateChange(ctx, &entity.StateChange{
		ChargePointId: chargePoint.Id,
		ChangeType:    entity.ChangeTypeConnection,
		OldValue:      strconv.FormatBool(!chargePoint.IsConnected),
		NewValue:      strconv.FormatBool(chargePoint.IsConnected),
		Metadata:      map[string]string{"source": source},
	})
}

// recordStateChange persists the event, then hands it to the state change hooks.
func (h *SystemHandler) recordStateChange(ctx context.Context, stateChange *entity.StateChange) {
	stateChange.Id = utility.NewUUID()
	stateChange.CreatedAt = h.now()
	if err := h.database.AddStateChange(stateChange); err != nil {
		h.logger.Error(fmt.Sprintf("save %s change of %s", stateChange.ChangeType, stateChange.ChargePointId), err)
		return
	}
	h.stateChanges.Execute(ctx, stateChange)
}

func (h *SystemHandler) broadcast(chargePointId, topic string, payload interface{}) {
	if h.messages == nil {
		return
	}
	if err := h.messages.Broadcast(chargePointId, topic, payload); err != nil {
		h.logger.Error(fmt.Sprintf("broadcast %s to %s observers", topic, chargePointId), err)
	}
}
