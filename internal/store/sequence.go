package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceGroupIDs names the counter document backing group id allocation.
const SequenceGroupIDs = "group_ids"

type findOneAndUpdateCollection interface {
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
}

// Sequence issues monotonically increasing int64 ids from a counter document,
// using an atomic $inc upsert so concurrent callers never observe the same id.
type Sequence struct {
	counters findOneAndUpdateCollection
	name     string
}

// NewSequence constructs a Sequence over the counters collection.
func NewSequence(counters findOneAndUpdateCollection, name string) *Sequence {
	return &Sequence{
		counters: counters,
		name:     name,
	}
}

// Next returns the next id in the sequence, starting at 1.
func (s *Sequence) Next(ctx context.Context) (int64, error) {
	if s == nil || s.counters == nil {
		return 0, errors.New("sequence is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	result := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)
	if result == nil {
		return 0, errors.New("sequence update returned no result")
	}
	if err := result.Err(); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", s.name, err)
	}

	var doc struct {
		Value int64 `bson:"value"`
	}
	if err := result.Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode sequence %s: %w", s.name, err)
	}

	return doc.Value, nil
}
