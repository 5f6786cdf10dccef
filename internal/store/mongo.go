package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoNode is the document layout of the nodes collection: an ObjectID _id
// and the parent reference kept as its hex string.
type mongoNode struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	ParentID  *string            `bson:"parentId"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d mongoNode) node() Node {
	return Node{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		ParentID:  copyString(d.ParentID),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// MongoStore keeps nodes in a MongoDB collection. MongoDB has no multi-document
// atomicity outside transactions, so DeleteMany can remove part of a batch;
// callers verify the result.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	store := NewMongoStore(client, client.Database(database).Collection(collection))
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func NewMongoStore(client *mongo.Client, collection *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, collection: collection}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parentId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create parentId index: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, filter Filter) ([]Node, error) {
	if filter.empty() {
		return []Node{}, nil
	}
	query := bson.M{}
	if filter.IDs != nil {
		query["_id"] = bson.M{"$in": objectIDs(filter.IDs)}
	}
	if filter.ParentIDs != nil {
		query["parentId"] = bson.M{"$in": dedupe(filter.ParentIDs)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	var docs []mongoNode
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	nodes := make([]Node, 0, len(docs))
	for _, doc := range docs {
		nodes = append(nodes, doc.node())
	}
	return nodes, nil
}

func (s *MongoStore) FindOne(ctx context.Context, id string) (Node, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Node{}, ErrNotFound
	}
	var doc mongoNode
	if err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Node{}, ErrNotFound
		}
		return Node{}, fmt.Errorf("find node: %w", err)
	}
	return doc.node(), nil
}

func (s *MongoStore) Insert(ctx context.Context, input NewNode) (Node, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := mongoNode{
		ID:        primitive.NewObjectID(),
		Text:      input.Text,
		ParentID:  copyString(input.ParentID),
		CreatedAt: createdAt.Truncate(time.Millisecond),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return Node{}, fmt.Errorf("insert node: %w", err)
	}
	return doc.node(), nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}
	result, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (s *MongoStore) Update(ctx context.Context, id string, patch Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	var set bson.M
	switch {
	case patch.Detach:
		set = bson.M{"parentId": nil}
	case patch.ParentID != nil:
		set = bson.M{"parentId": *patch.ParentID}
	default:
		_, err := s.FindOne(ctx, id)
		return err
	}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return int(count), nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// objectIDs converts hex ids, dropping those that cannot name a document.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range dedupe(ids) {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		out = append(out, oid)
	}
	return out
}
