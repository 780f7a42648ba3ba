// Package mongostore stores sweets and orders in MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	sweetsCollection = "sweets"
	ordersCollection = "orders"
)

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique name index, the listing index and the order lookups.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(sweetsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("name_unique")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_at")},
	})
	if err != nil {
		return fmt.Errorf("mongo: sweet indexes: %w", err)
	}

	_, err = db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "gatewayOrderId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("gateway_order_unique").
				SetPartialFilterExpression(bson.M{"gatewayOrderId": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("customer_orders")},
	})
	if err != nil {
		return fmt.Errorf("mongo: order indexes: %w", err)
	}
	return nil
}
