package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

type sweetDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Name         string               `bson:"name"`
	Category     string               `bson:"category"`
	Price        primitive.Decimal128 `bson:"price"`
	Quantity     primitive.Decimal128 `bson:"quantity"`
	QuantityUnit string               `bson:"quantityUnit"`
	Image        string               `bson:"image"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

type SweetRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewSweetRepository(db *mongo.Database) *SweetRepository {
	return &SweetRepository{
		coll: db.Collection(sweetsCollection),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (r *SweetRepository) Insert(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	price, err := toDecimal128(s.Price)
	if err != nil {
		return nil, err
	}
	qty, err := toDecimal128(s.Quantity)
	if err != nil {
		return nil, err
	}
	now := r.now()
	doc := sweetDoc{
		ID:           primitive.NewObjectID(),
		Name:         s.Name,
		Category:     s.Category,
		Price:        price,
		Quantity:     qty,
		QuantityUnit: string(s.QuantityUnit),
		Image:        s.Image,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, r.mapErr("insert", err)
	}
	return doc.toDomain()
}

func (r *SweetRepository) Get(ctx context.Context, id string) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var doc sweetDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, r.mapErr("get", err)
	}
	return doc.toDomain()
}

func (r *SweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	return r.Search(ctx, domain.Filter{})
}

func (r *SweetRepository) Search(ctx context.Context, f domain.Filter) ([]*domain.Sweet, error) {
	filter := bson.M{}
	if f.Name != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Name), Options: "i"}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	price := bson.M{}
	if f.MinPrice != nil {
		v, err := toDecimal128(*f.MinPrice)
		if err != nil {
			return nil, err
		}
		price["$gte"] = v
	}
	if f.MaxPrice != nil {
		v, err := toDecimal128(*f.MaxPrice)
		if err != nil {
			return nil, err
		}
		price["$lte"] = v
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, r.mapErr("search", err)
	}
	defer cur.Close(ctx)

	out := make([]*domain.Sweet, 0)
	for cur.Next(ctx) {
		var doc sweetDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, r.mapErr("search", err)
		}
		s, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := cur.Err(); err != nil {
		return nil, r.mapErr("search", err)
	}
	return out, nil
}

func (r *SweetRepository) Update(ctx context.Context, id string, p domain.Patch, g domain.Guard) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	set := bson.M{"updatedAt": r.now()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Price != nil {
		if set["price"], err = toDecimal128(*p.Price); err != nil {
			return nil, err
		}
	}
	if p.Quantity != nil {
		if set["quantity"], err = toDecimal128(*p.Quantity); err != nil {
			return nil, err
		}
	}
	if p.QuantityUnit != nil {
		set["quantityUnit"] = string(*p.QuantityUnit)
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	filter, err := guardFilter(oid, g)
	if err != nil {
		return nil, err
	}
	updated, err := r.findAndUpdate(ctx, "update", filter, bson.M{"$set": set})
	if errors.Is(err, domain.ErrNotFound) && (g != domain.Guard{}) {
		return nil, r.refusal(ctx, id)
	}
	return updated, err
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return r.mapErr("delete", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementIfAvailable matches only while quantity >= qty, so the check and the $inc are one document write.
func (r *SweetRepository) DecrementIfAvailable(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	want, err := toDecimal128(qty)
	if err != nil {
		return nil, err
	}
	neg, err := toDecimal128(qty.Neg())
	if err != nil {
		return nil, err
	}

	g := domain.Guard{Unit: unit}
	filter, err := guardFilter(oid, g)
	if err != nil {
		return nil, err
	}
	filter["quantity"] = bson.M{"$gte": want}

	s, err := r.findAndUpdate(ctx, "decrement", filter,
		bson.M{"$inc": bson.M{"quantity": neg}, "$set": bson.M{"updatedAt": r.now()}},
	)
	if !errors.Is(err, domain.ErrNotFound) {
		return s, err
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Holds(current) {
		return nil, domain.ErrConcurrentChange
	}
	return nil, domain.StockError(current.Quantity, current.QuantityUnit)
}

func (r *SweetRepository) Increment(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	add, err := toDecimal128(qty)
	if err != nil {
		return nil, err
	}
	g := domain.Guard{Unit: unit}
	filter, err := guardFilter(oid, g)
	if err != nil {
		return nil, err
	}
	s, err := r.findAndUpdate(ctx, "increment", filter,
		bson.M{"$inc": bson.M{"quantity": add}, "$set": bson.M{"updatedAt": r.now()}},
	)
	if errors.Is(err, domain.ErrNotFound) && unit != "" {
		return nil, r.refusal(ctx, id)
	}
	return s, err
}

// guardFilter matches the document only while g holds.
func guardFilter(oid primitive.ObjectID, g domain.Guard) (bson.M, error) {
	filter := bson.M{"_id": oid}
	if g.Unit != "" {
		filter["quantityUnit"] = string(g.Unit)
	}
	if g.Quantity != nil {
		q, err := toDecimal128(*g.Quantity)
		if err != nil {
			return nil, err
		}
		filter["quantity"] = q
	}
	return filter, nil
}

// refusal explains a guarded write that matched no document.
func (r *SweetRepository) refusal(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrConcurrentChange
}

func (r *SweetRepository) findAndUpdate(ctx context.Context, op string, filter, update bson.M) (*domain.Sweet, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc sweetDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, r.mapErr(op, err)
	}
	return doc.toDomain()
}

func (r *SweetRepository) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrDuplicateName
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domain.Unavailable(fmt.Errorf("mongo: %s sweet: %w", op, err))
	}
}

func (d sweetDoc) toDomain() (*domain.Sweet, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	qty, err := fromDecimal128(d.Quantity)
	if err != nil {
		return nil, err
	}
	return &domain.Sweet{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Category:     d.Category,
		Price:        price,
		Quantity:     qty,
		QuantityUnit: domain.Unit(d.QuantityUnit),
		Image:        d.Image,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, &domain.ValidationError{Field: "decimal", Message: err.Error()}
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("mongo: decimal %q: %w", v.String(), err)
	}
	return d, nil
}
