package internal

import (
	"context"
	"errors"
	"evcentral/entity"
	"evcentral/internal/config"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionChargePoints   = "charge_points"
	collectionConnectors     = "connectors"
	collectionTransactions   = "transactions"
	collectionMeterValues    = "meter_values"
	collectionMessages       = "messages"
	collectionAuthorizations = "authorizations"
	collectionStateChanges   = "state_changes"
	collectionUserTags       = "user_tags"
	collectionCounters       = "counters"

	counterTransactions = "transaction_id"
	operationTimeout    = 10 * time.Second
)

type MongoDB struct {
	ctx      context.Context
	client   *mongo.Client
	database string
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return &MongoDB{
		ctx:      context.Background(),
		client:   client,
		database: conf.Mongo.Database,
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := m.timeout()
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, operationTimeout)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) findOne(collectionName string, filter interface{}, result interface{}, opts ...*options.FindOneOptions) error {
	ctx, cancel := m.timeout()
	defer cancel()
	err := m.collection(collectionName).FindOne(ctx, filter, opts...).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (m *MongoDB) insertOne(collectionName string, document interface{}) error {
	ctx, cancel := m.timeout()
	defer cancel()
	_, err := m.collection(collectionName).InsertOne(ctx, document)
	return err
}

func (m *MongoDB) updateOne(collectionName string, filter bson.D, document interface{}, upsert bool) error {
	ctx, cancel := m.timeout()
	defer cancel()
	opts := options.Update().SetUpsert(upsert)
	result, err := m.collection(collectionName).UpdateOne(ctx, filter, bson.M{"$set": document}, opts)
	if err != nil {
		return err
	}
	if !upsert && result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) deleteBefore(collectionName string, before time.Time) (int, error) {
	ctx, cancel := m.timeout()
	defer cancel()
	filter := bson.D{{"created_at", bson.D{{"$lt", before}}}}
	result, err := m.collection(collectionName).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}

func (m *MongoDB) GetChargePoint(id string) (*entity.ChargePoint, error) {
	var chargePoint entity.ChargePoint
	if err := m.findOne(collectionChargePoints, bson.D{{"charge_point_id", id}}, &chargePoint); err != nil {
		return nil, err
	}
	return &chargePoint, nil
}

func (m *MongoDB) AddChargePoint(chargePoint *entity.ChargePoint) error {
	existing, err := m.GetChargePoint(chargePoint.Id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("charge point with id %s already exists", chargePoint.Id)
	}
	return m.insertOne(collectionChargePoints, chargePoint)
}

func (m *MongoDB) UpdateChargePoint(chargePoint *entity.ChargePoint) error {
	return m.updateOne(collectionChargePoints, bson.D{{"charge_point_id", chargePoint.Id}}, chargePoint, false)
}

func (m *MongoDB) GetConnector(chargePointId string, id int) (*entity.Connector, error) {
	var connector entity.Connector
	filter := bson.D{{"charge_point_id", chargePointId}, {"connector_id", id}}
	if err := m.findOne(collectionConnectors, filter, &connector); err != nil {
		return nil, err
	}
	return &connector, nil
}

func (m *MongoDB) UpdateConnector(connector *entity.Connector) error {
	filter := bson.D{{"charge_point_id", connector.ChargePointId}, {"connector_id", connector.Id}}
	return m.updateOne(collectionConnectors, filter, connector, true)
}

// nextSequence increments a named counter and returns its new value.
func (m *MongoDB) nextSequence(name string) (int, error) {
	ctx, cancel := m.timeout()
	defer cancel()
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int `bson:"seq"`
	}
	err := m.collection(collectionCounters).
		FindOneAndUpdate(ctx, bson.D{{"_id", name}}, bson.D{{"$inc", bson.D{{"seq", 1}}}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	return counter.Seq, nil
}

func (m *MongoDB) AddTransaction(transaction *entity.Transaction) error {
	id, err := m.nextSequence(counterTransactions)
	if err != nil {
		return err
	}
	transaction.Id = id
	return m.insertOne(collectionTransactions, transaction)
}

func (m *MongoDB) GetTransaction(chargePointId string, id int) (*entity.Transaction, error) {
	var transaction entity.Transaction
	filter := bson.D{{"charge_point_id", chargePointId}, {"transaction_id", id}}
	if err := m.findOne(collectionTransactions, filter, &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (m *MongoDB) GetActiveTransaction(chargePointId string, connectorId int) (*entity.Transaction, error) {
	var transaction entity.Transaction
	filter := bson.D{
		{"charge_point_id", chargePointId},
		{"connector_id", connectorId},
		{"status", entity.TransactionStatusActive},
	}
	opts := options.FindOne().SetSort(bson.D{{"transaction_id", -1}})
	if err := m.findOne(collectionTransactions, filter, &transaction, opts); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (m *MongoDB) UpdateTransaction(transaction *entity.Transaction) error {
	return m.updateOne(collectionTransactions, bson.D{{"transaction_id", transaction.Id}}, transaction, false)
}

func (m *MongoDB) CountActiveTransactions(chargePointId string) (int, error) {
	ctx, cancel := m.timeout()
	defer cancel()
	filter := bson.D{{"charge_point_id", chargePointId}, {"status", entity.TransactionStatusActive}}
	count, err := m.collection(collectionTransactions).CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (m *MongoDB) AddMeterValue(meterValue *entity.MeterValue) error {
	return m.insertOne(collectionMeterValues, meterValue)
}

func (m *MongoDB) AddMessage(message *entity.Message) error {
	return m.insertOne(collectionMessages, message)
}

func (m *MongoDB) FindPendingMessage(chargePointId, messageId string) (*entity.Message, error) {
	var message entity.Message
	filter := bson.D{
		{"charge_point_id", chargePointId},
		{"message_id", messageId},
		{"direction", entity.DirectionOutbound},
		{"message_type", entity.MessageTypeCall},
		{"status", bson.D{{"$in", bson.A{entity.MessageStatusPending, entity.MessageStatusSent}}}},
	}
	if err := m.findOne(collectionMessages, filter, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (m *MongoDB) UpdateMessage(message *entity.Message) error {
	return m.updateOne(collectionMessages, messageFilter(message), message, false)
}

// messageFilter matches the one logged frame a message record stands for; a call and
// the response to it share the message id and direction.
func messageFilter(message *entity.Message) bson.D {
	return bson.D{
		{"charge_point_id", message.ChargePointId},
		{"message_id", message.MessageId},
		{"direction", message.Direction},
		{"message_type", message.MessageType},
	}
}

func (m *MongoDB) ExpireMessages(before time.Time) (int, error) {
	ctx, cancel := m.timeout()
	defer cancel()
	filter := bson.D{
		{"direction", entity.DirectionOutbound},
		{"message_type", entity.MessageTypeCall},
		{"status", bson.D{{"$in", bson.A{entity.MessageStatusPending, entity.MessageStatusSent}}}},
		{"created_at", bson.D{{"$lt", before}}},
	}
	update := bson.D{{"$set", bson.D{
		{"status", entity.MessageStatusError},
		{"error_description", "response timeout"},
		{"updated_at", time.Now()},
	}}}
	result, err := m.collection(collectionMessages).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

func (m *MongoDB) AddAuthorization(authorization *entity.Authorization) error {
	return m.insertOne(collectionAuthorizations, authorization)
}

func (m *MongoDB) GetAuthorization(id string) (*entity.Authorization, error) {
	var authorization entity.Authorization
	if err := m.findOne(collectionAuthorizations, bson.D{{"id", id}}, &authorization); err != nil {
		return nil, err
	}
	return &authorization, nil
}

func (m *MongoDB) DeleteAuthorizations(before time.Time) (int, error) {
	return m.deleteBefore(collectionAuthorizations, before)
}

func (m *MongoDB) AddStateChange(stateChange *entity.StateChange) error {
	return m.insertOne(collectionStateChanges, stateChange)
}

func (m *MongoDB) GetStateChange(id string) (*entity.StateChange, error) {
	var stateChange entity.StateChange
	if err := m.findOne(collectionStateChanges, bson.D{{"id", id}}, &stateChange); err != nil {
		return nil, err
	}
	return &stateChange, nil
}

func (m *MongoDB) DeleteStateChanges(before time.Time) (int, error) {
	return m.deleteBefore(collectionStateChanges, before)
}

func (m *MongoDB) GetUserTag(idTag string) (*entity.UserTag, error) {
	var userTag entity.UserTag
	if err := m.findOne(collectionUserTags, bson.D{{"id_tag", idTag}}, &userTag); err != nil {
		return nil, err
	}
	return &userTag, nil
}
