// Package memory keeps every record in process memory. It backs tests and runs
// with the database disabled.
package memory

import (
	"evcentral/entity"
	"evcentral/internal"
	"fmt"
	"sync"
	"time"
)

type connectorKey struct {
	chargePointId string
	id            int
}

type messageKey struct {
	chargePointId string
	messageId     string
	direction     string
	messageType   int
}

type Store struct {
	mux            sync.Mutex
	chargePoints   map[string]entity.ChargePoint
	connectors     map[connectorKey]entity.Connector
	transactions   map[int]entity.Transaction
	lastTransId    int
	meterValues    []entity.MeterValue
	messages       map[messageKey]entity.Message
	authorizations map[string]entity.Authorization
	stateChanges   map[string]entity.StateChange
	stateOrder     []string
	userTags       map[string]entity.UserTag
}

func NewStore() *Store {
	return &Store{
		chargePoints:   make(map[string]entity.ChargePoint),
		connectors:     make(map[connectorKey]entity.Connector),
		transactions:   make(map[int]entity.Transaction),
		messages:       make(map[messageKey]entity.Message),
		authorizations: make(map[string]entity.Authorization),
		stateChanges:   make(map[string]entity.StateChange),
		userTags:       make(map[string]entity.UserTag),
	}
}

func (s *Store) GetChargePoint(id string) (*entity.ChargePoint, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	cp, ok := s.chargePoints[id]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &cp, nil
}

func (s *Store) AddChargePoint(chargePoint *entity.ChargePoint) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.chargePoints[chargePoint.Id]; ok {
		return fmt.Errorf("charge point with id %s already exists", chargePoint.Id)
	}
	s.chargePoints[chargePoint.Id] = *chargePoint
	return nil
}

func (s *Store) UpdateChargePoint(chargePoint *entity.ChargePoint) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.chargePoints[chargePoint.Id]; !ok {
		return internal.ErrNotFound
	}
	s.chargePoints[chargePoint.Id] = *chargePoint
	return nil
}

func (s *Store) GetConnector(chargePointId string, id int) (*entity.Connector, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	c, ok := s.connectors[connectorKey{chargePointId, id}]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &c, nil
}

func (s *Store) UpdateConnector(connector *entity.Connector) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.connectors[connectorKey{connector.ChargePointId, connector.Id}] = *connector
	return nil
}

func (s *Store) AddTransaction(transaction *entity.Transaction) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.lastTransId++
	transaction.Id = s.lastTransId
	s.transactions[transaction.Id] = *transaction
	return nil
}

func (s *Store) GetTransaction(chargePointId string, id int) (*entity.Transaction, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.ChargePointId != chargePointId {
		return nil, internal.ErrNotFound
	}
	return &t, nil
}

// GetActiveTransaction returns the most recently started active session on the connector.
func (s *Store) GetActiveTransaction(chargePointId string, connectorId int) (*entity.Transaction, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	var found *entity.Transaction
	for _, t := range s.transactions {
		if t.ChargePointId != chargePointId || t.ConnectorId != connectorId || !t.IsActive() {
			continue
		}
		if found == nil || t.Id > found.Id {
			tc := t
			found = &tc
		}
	}
	if found == nil {
		return nil, internal.ErrNotFound
	}
	return found, nil
}

func (s *Store) UpdateTransaction(transaction *entity.Transaction) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.transactions[transaction.Id]; !ok {
		return internal.ErrNotFound
	}
	s.transactions[transaction.Id] = *transaction
	return nil
}

func (s *Store) CountActiveTransactions(chargePointId string) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	count := 0
	for _, t := range s.transactions {
		if t.ChargePointId == chargePointId && t.IsActive() {
			count++
		}
	}
	return count, nil
}

func (s *Store) AddMeterValue(meterValue *entity.MeterValue) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.meterValues = append(s.meterValues, *meterValue)
	return nil
}

// MeterValues returns a copy of every stored reading.
func (s *Store) MeterValues() []entity.MeterValue {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]entity.MeterValue(nil), s.meterValues...)
}

func (s *Store) AddMessage(message *entity.Message) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.messages[messageKey{message.ChargePointId, message.MessageId, message.Direction, message.MessageType}] = *message
	return nil
}

func (s *Store) FindPendingMessage(chargePointId, messageId string) (*entity.Message, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	m, ok := s.messages[messageKey{chargePointId, messageId, entity.DirectionOutbound, entity.MessageTypeCall}]
	if !ok || !m.IsAwaitingResponse() {
		return nil, internal.ErrNotFound
	}
	return &m, nil
}

func (s *Store) UpdateMessage(message *entity.Message) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := messageKey{message.ChargePointId, message.MessageId, message.Direction, message.MessageType}
	if _, ok := s.messages[key]; !ok {
		return internal.ErrNotFound
	}
	s.messages[key] = *message
	return nil
}

// Messages returns a copy of every stored message of the charge point.
func (s *Store) Messages(chargePointId string) []entity.Message {
	s.mux.Lock()
	defer s.mux.Unlock()
	var list []entity.Message
	for key, m := range s.messages {
		if key.chargePointId == chargePointId {
			list = append(list, m)
		}
	}
	return list
}

func (s *Store) ExpireMessages(before time.Time) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	count := 0
	for key, m := range s.messages {
		if m.IsAwaitingResponse() && m.CreatedAt.Before(before) {
			m.Advance(entity.MessageStatusError)
			m.ErrorDescription = "response timeout"
			s.messages[key] = m
			count++
		}
	}
	return count, nil
}

func (s *Store) AddAuthorization(authorization *entity.Authorization) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.authorizations[authorization.Id] = *authorization
	return nil
}

func (s *Store) GetAuthorization(id string) (*entity.Authorization, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	a, ok := s.authorizations[id]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &a, nil
}

func (s *Store) DeleteAuthorizations(before time.Time) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	count := 0
	for id, a := range s.authorizations {
		if a.CreatedAt.Before(before) {
			delete(s.authorizations, id)
			count++
		}
	}
	return count, nil
}

func (s *Store) AddStateChange(stateChange *entity.StateChange) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.stateChanges[stateChange.Id] = *stateChange
	s.stateOrder = append(s.stateOrder, stateChange.Id)
	return nil
}

func (s *Store) GetStateChange(id string) (*entity.StateChange, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	sc, ok := s.stateChanges[id]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &sc, nil
}

// StateChanges returns the stored events in insertion order.
func (s *Store) StateChanges() []entity.StateChange {
	s.mux.Lock()
	defer s.mux.Unlock()
	var list []entity.StateChange
	for _, id := range s.stateOrder {
		if sc, ok := s.stateChanges[id]; ok {
			list = append(list, sc)
		}
	}
	return list
}

func (s *Store) DeleteStateChanges(before time.Time) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	count := 0
	for id, sc := range s.stateChanges {
		if sc.CreatedAt.Before(before) {
			delete(s.stateChanges, id)
			count++
		}
	}
	return count, nil
}

func (s *Store) GetUserTag(idTag string) (*entity.UserTag, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	tag, ok := s.userTags[idTag]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &tag, nil
}

func (s *Store) AddUserTag(userTag *entity.UserTag) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.userTags[userTag.IdTag] = *userTag
}
