package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// orderDocument carries the ObjectID the domain type keeps as a hex string.
type orderDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	domain.Order `bson:",inline"`
}

func (d *orderDocument) toDomain() *domain.Order {
	order := d.Order
	order.ID = d.ID.Hex()
	return &order
}

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

func (m *mongoOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.OrderTime.IsZero() {
		order.OrderTime = now
	}
	order.UpdatedAt = now

	doc := orderDocument{Order: *order}
	result, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert order: unexpected id type %T", result.InsertedID)
	}
	order.ID = id.Hex()
	return nil
}

func (m *mongoOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *mongoOrderRepository) FindByUserAndID(ctx context.Context, userID, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid, "user_id": userID})
}

func (m *mongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc orderDocument
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return doc.toDomain(), nil
}

func (m *mongoOrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order_time", Value: -1}})
	return m.list(ctx, bson.M{"user_id": userID}, opts)
}

func (m *mongoOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order_time", Value: 1}})
	return m.list(ctx, bson.M{"status": status}, opts)
}

func (m *mongoOrderRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, doc.toDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}

	return orders, nil
}

func (m *mongoOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	// The status in the filter makes this a compare-and-set
	filter := bson.M{"_id": oid, "status": from}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc orderDocument
	err = m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	count, err := m.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("count order: %w", err)
	}
	if count == 0 {
		return nil, ErrOrderNotFound
	}
	return nil, ErrStatusConflict
}

func (m *mongoOrderRepository) ProductTotals(ctx context.Context, status domain.OrderStatus) ([]ProductTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": status}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$items.product_id",
			"quantity": bson.M{"$sum": "$items.quantity"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate product totals: %w", err)
	}
	defer cursor.Close(ctx)

	totals := make([]ProductTotal, 0)
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decode product totals: %w", err)
	}
	return totals, nil
}

func (m *mongoOrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "order_time", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	return nil
}
