// Package blueprint stores each organization's strategic blueprint.
package blueprint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("blueprint not found")

// Repository keeps at most one blueprint per organization.
type Repository interface {
	Get(ctx context.Context, orgID string) (*models.Blueprint, error)
	// Merge applies p, creating the blueprint when the organization has none.
	Merge(ctx context.Context, orgID string, p models.BlueprintPatch) (*models.Blueprint, error)
}

type MemoryRepo struct {
	mu    sync.Mutex
	clock clock.Clock
	byOrg map[string]*models.Blueprint
}

func NewMemoryRepo(c clock.Clock) *MemoryRepo {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryRepo{clock: c, byOrg: make(map[string]*models.Blueprint)}
}

func (m *MemoryRepo) Get(_ context.Context, orgID string) (*models.Blueprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byOrg[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBlueprint(b), nil
}

func (m *MemoryRepo) Merge(_ context.Context, orgID string, p models.BlueprintPatch) (*models.Blueprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byOrg[orgID]
	if !ok {
		b = &models.Blueprint{ID: ids.NewBlueprintID(), OrganizationID: orgID}
		m.byOrg[orgID] = b
	}
	p.Apply(b)
	b.UpdatedAt = m.clock.Now()
	return cloneBlueprint(b), nil
}

func cloneBlueprint(b *models.Blueprint) *models.Blueprint {
	c := *b
	c.Values = copyStrings(b.Values)
	c.Objectives = copyStrings(b.Objectives)
	c.Pillars = copyStrings(b.Pillars)
	c.TaxonomyTerms = copyStrings(b.TaxonomyTerms)
	return &c
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// MongoRepo enforces one blueprint per organization with a unique index.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "organizationId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(context.Background(), idx); err != nil {
		logger.Warnf("blueprints: ensure index: %v", err)
	}
	return &MongoRepo{col: col}
}

func (r *MongoRepo) Get(ctx context.Context, orgID string) (*models.Blueprint, error) {
	var b models.Blueprint
	if err := r.col.FindOne(ctx, bson.M{"organizationId": orgID}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blueprint: %w", err)
	}
	return &b, nil
}

func (r *MongoRepo) Merge(ctx context.Context, orgID string, p models.BlueprintPatch) (*models.Blueprint, error) {
	set := bson.M{}
	if p.Vision != nil {
		set["vision"] = *p.Vision
	}
	if p.Mission != nil {
		set["mission"] = *p.Mission
	}
	if p.Values != nil {
		set["values"] = *p.Values
	}
	if p.Objectives != nil {
		set["objectives"] = *p.Objectives
	}
	if p.Pillars != nil {
		set["pillars"] = *p.Pillars
	}
	if p.TaxonomyTerms != nil {
		set["taxonomyTerms"] = *p.TaxonomyTerms
	}
	update := bson.M{
		"$setOnInsert": bson.M{"_id": ids.NewBlueprintID()},
		"$currentDate": bson.M{"updatedAt": true},
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var b models.Blueprint
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"organizationId": orgID}, update, opts).Decode(&b); err != nil {
		return nil, fmt.Errorf("merge blueprint: %w", err)
	}
	return &b, nil
}
