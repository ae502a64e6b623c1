package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// productDocument mirrors the stored shape. _id holds an ObjectId when the
// product id is valid ObjectId hex and a plain string otherwise, so both
// generated and caller-chosen ids round-trip.
type productDocument struct {
	ID         any     `bson:"_id"`
	ProductNum string  `bson:"productNum"`
	Name       string  `bson:"name"`
	Price      float64 `bson:"price"`
}

func toDocument(p Product) productDocument {
	return productDocument{ID: documentID(p.ID), ProductNum: p.ProductNum, Name: p.Name, Price: p.Price}
}

func (d productDocument) product() Product {
	return Product{ID: productID(d.ID), ProductNum: d.ProductNum, Name: d.Name, Price: d.Price}
}

func documentID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func productID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// MongoStore keeps one document per product, keyed by _id.
type MongoStore struct {
	client       *mongo.Client
	coll         *mongo.Collection
	queryTimeout time.Duration
}

func NewMongoStore(client *mongo.Client, database, collection string, queryTimeout time.Duration) *MongoStore {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &MongoStore{
		client:       client,
		coll:         client.Database(database).Collection(collection),
		queryTimeout: queryTimeout,
	}
}

func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := withTimeout(ctx, 5*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx, readpref.Primary())
	})
}

func (s *MongoStore) Insert(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.coll.InsertOne(ctx, toDocument(p))
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return Product{}, ErrDuplicateKey
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (Product, bool, error) {
	var doc productDocument

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		return s.coll.FindOne(ctx, bson.M{"_id": documentID(id)}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return doc.product(), true, nil
}

func (s *MongoStore) FindAll(ctx context.Context) iter.Seq2[Product, error] {
	return s.find(ctx, bson.D{})
}

func (s *MongoStore) FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error] {
	return s.find(ctx, bson.M{"price": bson.M{"$gte": min, "$lte": max}})
}

func (s *MongoStore) Save(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": documentID(p.ID)}, toDocument(p), options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *MongoStore) DeleteByID(ctx context.Context, id string) error {
	return withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"_id": documentID(id)})
		return err
	})
}

// find walks the cursor batch by batch as the consumer pulls. queryTimeout
// bounds opening the cursor; later batches follow the caller's context so a
// slow consumer is not cut off.
func (s *MongoStore) find(ctx context.Context, filter any) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		var cur *mongo.Cursor
		err := withTimeout(ctx, s.queryTimeout, func(openCtx context.Context) error {
			var err error
			cur, err = s.coll.Find(openCtx, filter)
			return err
		})
		if err != nil {
			yield(Product{}, err)
			return
		}
		defer func() { _ = cur.Close(context.Background()) }()

		for cur.Next(ctx) {
			var doc productDocument
			if err := cur.Decode(&doc); err != nil {
				yield(Product{}, err)
				return
			}
			if !yield(doc.product(), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(Product{}, err)
		}
	}
}
