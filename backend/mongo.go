package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ========== MongoDB ==========

type MongoStore struct {
	client *mongo.Client
	plans  *mongo.Collection
}

// NewMongoStore 連線並確認資料庫可用
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	plans := client.Database(database).Collection(collection)
	if _, err := plans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb index: %w", err)
	}
	return &MongoStore{client: client, plans: plans}, nil
}

func (s *MongoStore) Name() string { return "mongo" }

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) List(ctx context.Context) ([]StoredPlan, error) {
	cursor, err := s.plans.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer cursor.Close(ctx)

	list := []StoredPlan{}
	for cursor.Next(ctx) {
		var p StoredPlan
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		list = append(list, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return list, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*StoredPlan, error) {
	var p StoredPlan
	err := s.plans.FindOne(ctx, bson.M{"id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *MongoStore) Create(ctx context.Context, p *StoredPlan) error {
	if _, err := s.plans.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, patch PlanPatch) error {
	result, err := s.plans.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": patch.fields(time.Now())},
	)
	if err != nil {
		return fmt.Errorf("update plan %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.plans.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrPlanNotFound
	}
	return nil
}
