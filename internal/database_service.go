package internal

import (
	"errors"
	"evcentral/entity"
	"time"
)

var ErrNotFound = errors.New("not found")

type Database interface {
	GetChargePoint(id string) (*entity.ChargePoint, error)
	AddChargePoint(chargePoint *entity.ChargePoint) error
	UpdateChargePoint(chargePoint *entity.ChargePoint) error

	GetConnector(chargePointId string, id int) (*entity.Connector, error)
	UpdateConnector(connector *entity.Connector) error

	// AddTransaction assigns the transaction a new unique Id.
	AddTransaction(transaction *entity.Transaction) error
	GetTransaction(chargePointId string, id int) (*entity.Transaction, error)
	GetActiveTransaction(chargePointId string, connectorId int) (*entity.Transaction, error)
	UpdateTransaction(transaction *entity.Transaction) error
	CountActiveTransactions(chargePointId string) (int, error)

	AddMeterValue(meterValue *entity.MeterValue) error

	AddMessage(message *entity.Message) error
	// FindPendingMessage looks up an outbound request that still awaits its response.
	FindPendingMessage(chargePointId, messageId string) (*entity.Message, error)
	UpdateMessage(message *entity.Message) error
	// ExpireMessages marks outbound requests created before the given time and still
	// awaiting a response as error.
	ExpireMessages(before time.Time) (int, error)

	AddAuthorization(authorization *entity.Authorization) error
	GetAuthorization(id string) (*entity.Authorization, error)
	DeleteAuthorizations(before time.Time) (int, error)

	AddStateChange(stateChange *entity.StateChange) error
	GetStateChange(id string) (*entity.StateChange, error)
	DeleteStateChanges(before time.Time) (int, error)

	GetUserTag(idTag string) (*entity.UserTag, error)
}
