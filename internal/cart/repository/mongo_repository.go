package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/templateshop/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// maxAddAttempts bounds the merge/push retries when concurrent adds race on
// the same product line.
const maxAddAttempts = 3

// AddItem appends the item or, when the product is already in the cart,
// increases its quantity by item.Quantity. The merged quantity never exceeds
// maxQuantity unless it is domain.Unlimited; the cap is part of the update
// filter so concurrent adds cannot overshoot it.
func (m mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem, maxQuantity int) error {
	if maxQuantity != domain.Unlimited && item.Quantity > maxQuantity {
		return domain.ErrCartQuotaExceeded
	}

	now := time.Now()
	item.AddedAt = now

	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		merged, err := m.mergeItem(ctx, userID, item, maxQuantity, now)
		if err != nil || merged {
			return err
		}

		pushed, err := m.pushItem(ctx, userID, item, now)
		if err != nil || pushed {
			return err
		}
	}
	return fmt.Errorf("failed to add item: cart %s kept changing", userID)
}

// mergeItem increments an existing line. It reports false when the cart has
// no line for the product.
func (m mongoRepository) mergeItem(ctx context.Context, userID string, item domain.CartItem, maxQuantity int, now time.Time) (bool, error) {
	match := bson.M{"product_id": item.ProductID}
	if maxQuantity != domain.Unlimited {
		match["quantity"] = bson.M{"$lte": maxQuantity - item.Quantity}
	}
	filter := bson.M{
		"user_id": userID,
		"items":   bson.M{"$elemMatch": match},
	}
	update := bson.M{
		"$inc": bson.M{"items.$[elem].quantity": item.Quantity},
		"$set": bson.M{
			"items.$[elem].unit_price": item.UnitPrice,
			"items.$[elem].title":      item.Title,
			"updated_at":               now,
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": item.ProductID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return false, fmt.Errorf("failed to update existing item: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	lines, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID, "items.product_id": item.ProductID})
	if err != nil {
		return false, fmt.Errorf("failed to check existing item: %w", err)
	}
	if lines > 0 {
		return false, domain.ErrCartQuotaExceeded
	}
	return false, nil
}

// pushItem appends a new line, creating the cart lazily. It reports false when
// a concurrent add created the line first.
func (m mongoRepository) pushItem(ctx context.Context, userID string, item domain.CartItem, now time.Time) (bool, error) {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": bson.M{"$ne": item.ProductID},
	}
	update := bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// the cart exists and already holds the product
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to add new item: %w", err)
	}
	return true, nil
}

func (m mongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// RemoveItem is a no-op when the cart or the item does not exist.
func (m mongoRepository) RemoveItem(ctx context.Context, userID string, productID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	return nil
}

// ClearCart empties the cart but keeps the document.
func (m mongoRepository) ClearCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"items":      []domain.CartItem{},
			"updated_at": time.Now(),
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

// EnsureIndexes creates the carts indexes when repo is the MongoDB implementation.
func EnsureIndexes(ctx context.Context, repo CartRepository) error {
	if mr, ok := repo.(*mongoRepository); ok {
		return mr.CreateIndexes(ctx)
	}
	return nil
}
