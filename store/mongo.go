package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LovationAdmin/astrodart-api/models"
)

const mongoCollection = "users"

// MongoStore keeps documents in the users collection with the email as _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, url, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Scan(ctx context.Context, startKey string, limit int) (*Page, error) {
	limit = pageLimit(limit)

	filter := bson.M{}
	if startKey != "" {
		filter = bson.M{"_id": bson.M{"$gt": startKey}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	page := &Page{}
	seen := 0
	for cursor.Next(ctx) {
		seen++
		if seen > limit {
			break
		}
		userID, _ := cursor.Current.Lookup("_id").StringValueOK()
		page.NextKey = userID

		var d document
		if err := cursor.Decode(&d); err != nil {
			page.reject(userID, fmt.Errorf("decode user: %w", err))
			continue
		}
		page.Users = append(page.Users, fromDocument(d))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read scan page: %w", err)
	}

	if seen <= limit {
		page.NextKey = ""
	}
	return page, nil
}

func (s *MongoStore) Get(ctx context.Context, userID string) (*models.User, error) {
	var d document
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user := fromDocument(d)
	return &user, nil
}

func (s *MongoStore) Put(ctx context.Context, user *models.User) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": user.UserID},
		toDocument(user),
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Update(ctx context.Context, userID string, field models.Field, value interface{}) error {
	encoded, err := encodeField(field, value)
	if err != nil {
		return err
	}
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{string(field): encoded}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}
