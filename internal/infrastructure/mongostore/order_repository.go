package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
)

type orderDoc struct {
	ID             string               `bson:"_id"`
	CustomerID     string               `bson:"customerId"`
	SweetID        string               `bson:"sweetId"`
	SweetName      string               `bson:"sweetName"`
	Quantity       primitive.Decimal128 `bson:"quantity"`
	Unit           string               `bson:"unit"`
	Amount         int64                `bson:"amount"`
	Currency       string               `bson:"currency"`
	GatewayOrderID string               `bson:"gatewayOrderId,omitempty"`
	PaymentID      string               `bson:"paymentId"`
	Status         string               `bson:"status"`
	FailureReason  string               `bson:"failureReason"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("mongo: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "get", bson.M{"_id": id})
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, "find", bson.M{"gatewayOrderId": gatewayOrderID})
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, expected domain.Status) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": o.ID, "status": string(expected)},
		bson.M{"$set": bson.M{
			"paymentId":     o.PaymentID,
			"status":        string(o.Status),
			"failureReason": o.FailureReason,
			"updatedAt":     o.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: update order: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": o.ID})
	if err != nil {
		return fmt.Errorf("mongo: update order: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *OrderRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: %s order: %w", op, err)
	}
	return doc.toDomain()
}

func newOrderDoc(o *domain.Order) (orderDoc, error) {
	qty, err := primitive.ParseDecimal128(o.Quantity.String())
	if err != nil {
		return orderDoc{}, fmt.Errorf("mongo: order quantity: %w", err)
	}
	return orderDoc{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		SweetID:        o.SweetID,
		SweetName:      o.SweetName,
		Quantity:       qty,
		Unit:           o.Unit,
		Amount:         o.Amount,
		Currency:       o.Currency,
		GatewayOrderID: o.GatewayOrderID,
		PaymentID:      o.PaymentID,
		Status:         string(o.Status),
		FailureReason:  o.FailureReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

func (d orderDoc) toDomain() (*domain.Order, error) {
	qty, err := fromDecimal128(d.Quantity)
	if err != nil {
		return nil, err
	}
	return &domain.Order{
		ID:             d.ID,
		CustomerID:     d.CustomerID,
		SweetID:        d.SweetID,
		SweetName:      d.SweetName,
		Quantity:       qty,
		Unit:           d.Unit,
		Amount:         d.Amount,
		Currency:       d.Currency,
		GatewayOrderID: d.GatewayOrderID,
		PaymentID:      d.PaymentID,
		Status:         domain.Status(d.Status),
		FailureReason:  d.FailureReason,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}
