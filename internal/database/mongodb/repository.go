package mongodb

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/internal/utils"
)

// MongoRepository implements the Repository interface for MongoDB.
// Documents are stored flat: the body keys plus the envelope fields
// objectId, created_date and last_updated.
type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// MongoQueryResult implements QueryResult for MongoDB
type MongoQueryResult struct {
	cursor *mongo.Cursor
	ctx    context.Context
	err    error
}

// MongoSingleResult implements SingleResult for MongoDB
type MongoSingleResult struct {
	result   *mongo.SingleResult
	err      error
	noResult bool
}

// NewMongoRepository connects to MongoDB and verifies the connection.
func NewMongoRepository(ctx context.Context, config *interfaces.MongoDBConfig, databaseName string) (*MongoRepository, error) {
	opts := options.Client().ApplyURI(config.URI)
	if config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(config.MaxPoolSize)
	}
	if config.MinPoolSize > 0 {
		opts.SetMinPoolSize(config.MinPoolSize)
	}
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(time.Duration(config.ConnectTimeout) * time.Second)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(databaseName),
		dbName:   databaseName,
	}, nil
}

// fieldName translates a logical field into the stored document key.
func fieldName(field interfaces.Field) string {
	if field.IsJSONB {
		return field.Name
	}
	switch field.Name {
	case "object_id":
		return "objectId"
	default:
		return field.Name
	}
}

// buildCondition renders one Field into a bson condition.
func buildCondition(field interfaces.Field) (string, interface{}) {
	name := fieldName(field)

	if values, ok := asSlice(field.Value); ok {
		return name, bson.M{"$in": values}
	}

	switch field.Operator {
	case "=":
		return name, bson.M{"$eq": field.Value}
	case "<>":
		return name, bson.M{"$ne": field.Value}
	case ">":
		return name, bson.M{"$gt": field.Value}
	case "<":
		return name, bson.M{"$lt": field.Value}
	case ">=":
		return name, bson.M{"$gte": field.Value}
	case "<=":
		return name, bson.M{"$lte": field.Value}
	case "REGEX_I":
		return name, bson.M{"$regex": fmt.Sprintf("%v", field.Value), "$options": "i"}
	default:
		return name, bson.M{"$eq": field.Value}
	}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// buildFilter renders a structured Query into a bson filter document.
func buildFilter(query *interfaces.Query) bson.M {
	if query == nil || (len(query.Conditions) == 0 && len(query.OrGroups) == 0) {
		return bson.M{}
	}

	and := bson.A{}
	for _, field := range query.Conditions {
		name, cond := buildCondition(field)
		and = append(and, bson.M{name: cond})
	}
	for _, orGroup := range query.OrGroups {
		or := bson.A{}
		for _, field := range orGroup {
			name, cond := buildCondition(field)
			or = append(or, bson.M{name: cond})
		}
		if len(or) > 0 {
			and = append(and, bson.M{"$or": or})
		}
	}

	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

// envelope merges the body document with the envelope fields.
func envelope(objectID uuid.UUID, createdDate, lastUpdated int64, data interface{}) (bson.M, error) {
	doc := bson.M{}
	switch m := data.(type) {
	case map[string]interface{}:
		for k, v := range m {
			doc[k] = v
		}
	case bson.M:
		for k, v := range m {
			doc[k] = v
		}
	default:
		raw, err := bson.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to normalize data: %w", err)
		}
	}
	doc["objectId"] = objectID.String()
	doc["created_date"] = createdDate
	doc["last_updated"] = lastUpdated
	return doc, nil
}

// updateDocument builds the $set update for a modification, refreshing
// last_updated alongside the changed fields.
func updateDocument(data interface{}, lastUpdated int64) (bson.M, error) {
	set := bson.M{}
	switch m := data.(type) {
	case map[string]interface{}:
		for k, v := range m {
			set[k] = v
		}
	case bson.M:
		for k, v := range m {
			set[k] = v
		}
	default:
		raw, err := bson.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		if err := bson.Unmarshal(raw, &set); err != nil {
			return nil, fmt.Errorf("failed to normalize data: %w", err)
		}
	}
	set["last_updated"] = lastUpdated
	return bson.M{"$set": set}, nil
}

// Save stores a single document.
func (r *MongoRepository) Save(ctx context.Context, collectionName string, objectID uuid.UUID, createdDate, lastUpdated int64, data interface{}) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		doc, err := envelope(objectID, createdDate, lastUpdated, data)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		res, err := r.database.Collection(collectionName).InsertOne(ctx, doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				result <- interfaces.RepositoryResult{Error: interfaces.ErrDuplicateKey}
				return
			}
			log.Error("MongoDB Save error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		result <- interfaces.RepositoryResult{Result: res.InsertedID}
	}()

	return result
}

// Find retrieves documents matching the query.
func (r *MongoRepository) Find(ctx context.Context, collectionName string, query *interfaces.Query, opts *interfaces.FindOptions) <-chan interfaces.QueryResult {
	result := make(chan interfaces.QueryResult)

	go func() {
		defer close(result)

		findOpts := options.Find()
		if opts != nil {
			if opts.Limit != nil {
				findOpts.SetLimit(*opts.Limit)
			}
			if opts.Skip != nil {
				findOpts.SetSkip(*opts.Skip)
			}
			if opts.Sort != nil {
				sort := bson.D{}
				for field, direction := range opts.Sort {
					key := field
					if field == "object_id" {
						key = "objectId"
					}
					sort = append(sort, bson.E{Key: key, Value: direction})
				}
				findOpts.SetSort(sort)
			}
		}
		// The Mongo _id is internal to the driver; never expose it.
		findOpts.SetProjection(bson.M{"_id": 0})

		cursor, err := r.database.Collection(collectionName).Find(ctx, buildFilter(query), findOpts)
		if err != nil {
			log.Error("MongoDB Find error: %s", err.Error())
			result <- &MongoQueryResult{err: err}
			return
		}

		result <- &MongoQueryResult{cursor: cursor, ctx: ctx}
	}()

	return result
}

// FindOne retrieves a single document matching the query.
func (r *MongoRepository) FindOne(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.SingleResult {
	result := make(chan interfaces.SingleResult)

	go func() {
		defer close(result)

		opts := options.FindOne().SetProjection(bson.M{"_id": 0})
		res := r.database.Collection(collectionName).FindOne(ctx, buildFilter(query), opts)
		result <- &MongoSingleResult{result: res}
	}()

	return result
}

// Update updates documents matching the query. With Upsert set, a missing
// document is inserted.
func (r *MongoRepository) Update(ctx context.Context, collectionName string, query *interfaces.Query, data interface{}, opts *interfaces.UpdateOptions) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		updateOpts := options.Update()
		if opts != nil && opts.Upsert != nil && *opts.Upsert {
			updateOpts.SetUpsert(true)
		}

		update, err := updateDocument(data, utils.UTCNowUnixMilli())
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		res, err := r.database.Collection(collectionName).UpdateMany(ctx, buildFilter(query), update, updateOpts)
		if err != nil {
			log.Error("MongoDB Update error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}
		if res.MatchedCount == 0 && res.UpsertedCount == 0 {
			result <- interfaces.RepositoryResult{Error: interfaces.ErrNoDocuments}
			return
		}

		result <- interfaces.RepositoryResult{Result: "OK"}
	}()

	return result
}

// Delete deletes documents matching the query.
func (r *MongoRepository) Delete(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		res, err := r.database.Collection(collectionName).DeleteMany(ctx, buildFilter(query))
		if err != nil {
			log.Error("MongoDB Delete error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}
		if res.DeletedCount == 0 {
			result <- interfaces.RepositoryResult{Error: interfaces.ErrNoDocuments}
			return
		}

		result <- interfaces.RepositoryResult{Result: "OK"}
	}()

	return result
}

// Count counts documents matching the query.
func (r *MongoRepository) Count(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.CountResult {
	result := make(chan interfaces.CountResult)

	go func() {
		defer close(result)

		count, err := r.database.Collection(collectionName).CountDocuments(ctx, buildFilter(query))
		if err != nil {
			log.Error("MongoDB Count error: %s", err.Error())
			result <- interfaces.CountResult{Error: err}
			return
		}

		result <- interfaces.CountResult{Count: count}
	}()

	return result
}

// Ping checks database connectivity.
func (r *MongoRepository) Ping(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- r.client.Ping(ctx, readpref.Primary())
	}()
	return result
}

// Close disconnects the client.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Next advances the cursor.
func (qr *MongoQueryResult) Next() bool {
	if qr.err != nil || qr.cursor == nil {
		return false
	}
	return qr.cursor.Next(qr.ctx)
}

// Decode unmarshals the current document into v.
func (qr *MongoQueryResult) Decode(v interface{}) error {
	if qr.err != nil {
		return qr.err
	}
	return qr.cursor.Decode(v)
}

// Close releases the cursor.
func (qr *MongoQueryResult) Close() {
	if qr.cursor != nil {
		qr.cursor.Close(qr.ctx)
	}
}

// Error returns the cursor error, if any.
func (qr *MongoQueryResult) Error() error {
	return qr.err
}

// Decode unmarshals the single document into v.
func (sr *MongoSingleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	err := sr.result.Decode(v)
	if err == mongo.ErrNoDocuments {
		sr.noResult = true
		return interfaces.ErrNoDocuments
	}
	return err
}

// Error returns the result error, if any.
func (sr *MongoSingleResult) Error() error {
	return sr.err
}

// NoResult reports whether the query matched no document.
func (sr *MongoSingleResult) NoResult() bool {
	return sr.noResult
}
