package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	subscriptionsCollection = "push_subscriptions"
	dispatchesCollection    = "push_dispatches"
)

var _ SubscriptionStore = (*MongoSubscriptionStore)(nil)

// MongoSubscriptionStore keeps subscriptions in a MongoDB collection with a
// unique index on endpoint.
type MongoSubscriptionStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// ConnectMongo dials uri and pings the deployment.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// NewMongoSubscriptionStore ensures indexes exist and returns the store.
func NewMongoSubscriptionStore(ctx context.Context, client *mongo.Client, database string) (*MongoSubscriptionStore, error) {
	coll := client.Database(database).Collection(subscriptionsCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "endpoint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoSubscriptionStore{client: client, coll: coll, now: time.Now}, nil
}

func (s *MongoSubscriptionStore) ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return s.find(ctx, bson.M{"user_id": userID, "is_active": true})
}

func (s *MongoSubscriptionStore) ListActive(ctx context.Context) ([]models.Subscription, error) {
	return s.find(ctx, bson.M{"is_active": true})
}

func (s *MongoSubscriptionStore) find(ctx context.Context, filter bson.M) ([]models.Subscription, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var subs []models.Subscription
	if err := cur.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *MongoSubscriptionStore) GetByEndpoint(ctx context.Context, endpoint string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.coll.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *MongoSubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	now := s.now()
	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	update := bson.M{
		"$set": bson.M{
			"user_id":    sub.UserID,
			"p256dh":     sub.P256dh,
			"auth":       sub.Auth,
			"is_active":  true,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":        id,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Subscription
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"endpoint": sub.Endpoint}, update, opts).Decode(&stored); err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (s *MongoSubscriptionStore) Deactivate(ctx context.Context, id string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": false, "updated_at": s.now()}})
	return err
}

func (s *MongoSubscriptionStore) DeactivateByEndpoint(ctx context.Context, endpoint string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"endpoint": endpoint}, bson.M{"$set": bson.M{"is_active": false, "updated_at": s.now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *MongoSubscriptionStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoSubscriptionStore) PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"is_active": false, "updated_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoSubscriptionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoSubscriptionStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// MongoDispatchLog stores dispatch summaries in MongoDB.
type MongoDispatchLog struct {
	coll *mongo.Collection
}

// NewMongoDispatchLog returns a dispatch log backed by database.
func NewMongoDispatchLog(client *mongo.Client, database string) *MongoDispatchLog {
	return &MongoDispatchLog{coll: client.Database(database).Collection(dispatchesCollection)}
}

// Save upserts rec. created_at is written only when the record is first inserted.
func (l *MongoDispatchLog) Save(ctx context.Context, rec *models.DispatchRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	update := bson.M{
		"$set": bson.M{
			"mode":       rec.Mode,
			"status":     rec.Status,
			"total":      rec.Total,
			"successful": rec.Successful,
			"failed":     rec.Failed,
			"pruned":     rec.Pruned,
			"message":    rec.Message,
			"updated_at": rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": rec.CreatedAt,
		},
	}
	_, err := l.coll.UpdateOne(ctx, bson.M{"_id": rec.RequestID}, update, options.Update().SetUpsert(true))
	return err
}

func (l *MongoDispatchLog) Get(ctx context.Context, requestID string) (*models.DispatchRecord, error) {
	var rec models.DispatchRecord
	err := l.coll.FindOne(ctx, bson.M{"_id": requestID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDispatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
