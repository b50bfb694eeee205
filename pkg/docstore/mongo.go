package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoModel runs docstore operations against a MongoDB collection.
//
// Supported operations:
//
//	find            documents matching the filter ([]map[string]any)
//	findOne         first matching document, nil when none matches
//	countDocuments  number of matching documents (int64)
//	distinct        distinct values of query["field"] over conditions
//	insertOne       inserts query, returns {"insertedId": id}
//	updateMany      applies the update in query to documents matching conditions
//	deleteMany      deletes matching documents
type MongoModel struct {
	coll *mongo.Collection
}

// NewMongoModel wraps coll.
func NewMongoModel(coll *mongo.Collection) *MongoModel {
	return &MongoModel{coll: coll}
}

// Collection returns the wrapped collection.
func (m *MongoModel) Collection() *mongo.Collection {
	return m.coll
}

// Exec implements Model.
func (m *MongoModel) Exec(ctx context.Context, operation string, query, conditions map[string]any) (any, error) {
	filter, arg := query, map[string]any(nil)
	if conditions != nil {
		filter, arg = conditions, query
	}

	switch operation {
	case "find":
		opts := options.Find()
		if len(arg) > 0 {
			opts.SetProjection(arg)
		}
		cur, err := m.coll.Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		docs := []map[string]any{}
		if err := cur.All(ctx, &docs); err != nil {
			return nil, err
		}
		return docs, nil

	case "findOne":
		opts := options.FindOne()
		if len(arg) > 0 {
			opts.SetProjection(arg)
		}
		var doc map[string]any
		err := m.coll.FindOne(ctx, filter, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return doc, nil

	case "countDocuments":
		return m.coll.CountDocuments(ctx, filter)

	case "distinct":
		field, _ := query["field"].(string)
		if field == "" {
			return nil, fmt.Errorf("distinct: query must name a field")
		}
		if conditions == nil {
			conditions = map[string]any{}
		}
		return m.coll.Distinct(ctx, field, conditions)

	case "insertOne":
		res, err := m.coll.InsertOne(ctx, query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"insertedId": res.InsertedID}, nil

	case "updateMany":
		if conditions == nil {
			return nil, fmt.Errorf("updateMany: conditions are required")
		}
		res, err := m.coll.UpdateMany(ctx, conditions, query)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"matchedCount":  res.MatchedCount,
			"modifiedCount": res.ModifiedCount,
			"upsertedCount": res.UpsertedCount,
		}, nil

	case "deleteMany":
		res, err := m.coll.DeleteMany(ctx, filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deletedCount": res.DeletedCount}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, operation)
}
