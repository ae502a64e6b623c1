//go:build integration
// +build integration

package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	mongoTestDB = "products_test"

	shortQueryTimeout = 100 * time.Millisecond
)

func openTestPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func truncateProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE products")
	require.NoError(t, err)
}

func openTestMongo(t *testing.T) *mongo.Client {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := OpenMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

// tempCollection returns a fresh collection name dropped when t ends.
func tempCollection(t *testing.T, client *mongo.Client) string {
	t.Helper()
	coll := "product_" + uuid.NewString()
	t.Cleanup(func() { _ = client.Database(mongoTestDB).Collection(coll).Drop(context.Background()) })
	return coll
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := openTestPostgres(t)

	runStoreContract(t, func(t *testing.T) Store {
		truncateProducts(t, pool)
		return NewPostgresStore(pool, time.Second)
	})
}

func TestPostgresStore_SlowConsumerOutlivesQueryTimeout(t *testing.T) {
	pool := openTestPostgres(t)
	truncateProducts(t, pool)

	checkSlowConsumer(t, NewPostgresStore(pool, shortQueryTimeout), 3*shortQueryTimeout/2)
}

func TestMongoStore_Contract(t *testing.T) {
	client := openTestMongo(t)

	runStoreContract(t, func(t *testing.T) Store {
		return NewMongoStore(client, mongoTestDB, tempCollection(t, client), time.Second)
	})
}

func TestMongoStore_SlowConsumerOutlivesQueryTimeout(t *testing.T) {
	client := openTestMongo(t)
	s := NewMongoStore(client, mongoTestDB, tempCollection(t, client), shortQueryTimeout)

	checkSlowConsumer(t, s, 3*shortQueryTimeout/2)
}

func TestMongoStore_ReadsObjectIDDocuments(t *testing.T) {
	ctx := context.Background()
	client := openTestMongo(t)
	name := tempCollection(t, client)
	coll := client.Database(mongoTestDB).Collection(name)

	oid := primitive.NewObjectID()
	_, err := coll.InsertOne(ctx, bson.M{
		"_id":        oid,
		"productNum": "legacy01",
		"name":       "legacy",
		"price":      12.5,
		"_class":     "com.example.product.Product",
	})
	require.NoError(t, err)

	s := NewMongoStore(client, mongoTestDB, name, time.Second)
	want := Product{ID: oid.Hex(), ProductNum: "legacy01", Name: "legacy", Price: 12.5}

	got, ok, err := s.FindByID(ctx, oid.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	assert.Equal(t, []Product{want}, collect(t, s.FindAll(ctx)))
	assert.Equal(t, []Product{want}, collect(t, s.FindByPriceBetween(ctx, 12, 13)))

	want.Price = 14
	_, err = s.Save(ctx, want)
	require.NoError(t, err)

	n, err := coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var raw bson.M
	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&raw))
	assert.Equal(t, 14.0, raw["price"])

	require.NoError(t, s.DeleteByID(ctx, oid.Hex()))

	n, err = coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMongoStore_InsertStoresObjectID(t *testing.T) {
	ctx := context.Background()
	client := openTestMongo(t)
	name := tempCollection(t, client)

	s := NewMongoStore(client, mongoTestDB, name, time.Second)
	p, err := s.Insert(ctx, Product{ProductNum: "fresh01", Name: "fresh", Price: 3})
	require.NoError(t, err)

	oid, err := primitive.ObjectIDFromHex(p.ID)
	require.NoError(t, err)

	n, err := client.Database(mongoTestDB).Collection(name).CountDocuments(ctx, bson.M{"_id": oid})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
