package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Stats summarizes collection sizes for the diagnostics endpoint.
type Stats struct {
	Users             int64 `json:"users"`
	Groups            int64 `json:"groups"`
	ActiveMemberships int64 `json:"active_memberships"`
}

// StatsProvider exposes collection counts for basic diagnostics without
// leaking MongoDB internals to callers.
type StatsProvider struct {
	users       countCollection
	groups      countCollection
	memberships countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided
// collections.
func NewStatsProvider(users, groups, memberships countCollection) *StatsProvider {
	return &StatsProvider{
		users:       users,
		groups:      groups,
		memberships: memberships,
	}
}

// Collect returns user, group, and active-membership counts.
func (p *StatsProvider) Collect(ctx context.Context) (Stats, error) {
	if ctx == nil {
		return Stats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil || p.groups == nil || p.memberships == nil {
		return Stats{}, errors.New("stats provider is not initialized")
	}

	users, err := p.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}

	groups, err := p.groups.CountDocuments(ctx, bson.D{})
	if err != nil {
		return Stats{}, fmt.Errorf("count groups: %w", err)
	}

	active, err := p.memberships.CountDocuments(ctx, bson.M{"is_removed": false})
	if err != nil {
		return Stats{}, fmt.Errorf("count memberships: %w", err)
	}

	return Stats{
		Users:             users,
		Groups:            groups,
		ActiveMemberships: active,
	}, nil
}
