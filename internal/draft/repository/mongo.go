package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores drafts with the client-assigned UUID as _id. updatedAt
// on every update is set with $currentDate so the server's clock wins.
type MongoRepo struct {
	col   *mongo.Collection
	clock clock.Clock
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	// listing and the approvals queue filter by organization and status
	idx := mongo.IndexModel{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}}}
	if _, err := col.Indexes().CreateOne(context.Background(), idx); err != nil {
		logger.Warnf("drafts: ensure index: %v", err)
	}
	return &MongoRepo{col: col, clock: clock.Real{}}
}

func (m *MongoRepo) Create(ctx context.Context, d *draft.Draft) (*draft.Draft, error) {
	doc := *d
	now := m.clock.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Attachments == nil {
		doc.Attachments = []draft.Attachment{}
	}
	if _, err := m.col.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("insert draft %s: %w", d.ID, err)
	}
	return &doc, nil
}

func (m *MongoRepo) Get(ctx context.Context, orgID, id string) (*draft.Draft, error) {
	var d draft.Draft
	err := m.col.FindOne(ctx, bson.M{"_id": id, "organizationId": orgID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return &d, nil
}

func (m *MongoRepo) List(ctx context.Context, orgID string, status draft.Status) ([]*draft.Draft, error) {
	filter := bson.M{"organizationId": orgID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer cur.Close(ctx)
	out := []*draft.Draft{}
	for cur.Next(ctx) {
		var d draft.Draft
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode draft: %w", err)
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, orgID, id string, expect draft.Status, c Changes) (*draft.Draft, error) {
	set := bson.M{}
	if c.Title != nil {
		set["title"] = *c.Title
	}
	if c.Content != nil {
		set["content"] = *c.Content
	}
	if s := c.Score; s != nil {
		set["alignmentScore"] = s.AlignmentScore
		set["justification"] = s.Justification
		set["suggestions"] = s.SuggestedActions
		set["rationale"] = s.Rationale
		set["feedback"] = s.Feedback
	}
	filter := bson.M{"_id": id, "organizationId": orgID}
	if expect != "" {
		filter["status"] = expect
	}
	update := bson.M{"$currentDate": bson.M{"updatedAt": true}}
	if len(set) > 0 {
		update["$set"] = set
	}
	return m.findAndUpdate(ctx, orgID, id, filter, update, ErrStatusConflict)
}

func (m *MongoRepo) Transition(ctx context.Context, orgID, id string, from, to draft.Status, feedback *string) (*draft.Draft, error) {
	set := bson.M{"status": to}
	if feedback != nil {
		set["feedback"] = *feedback
	}
	filter := bson.M{"_id": id, "organizationId": orgID, "status": from}
	update := bson.M{"$set": set, "$currentDate": bson.M{"updatedAt": true}}
	return m.findAndUpdate(ctx, orgID, id, filter, update, ErrStatusConflict)
}

func (m *MongoRepo) AppendAttachment(ctx context.Context, orgID, id string, a draft.Attachment) (*draft.Draft, error) {
	filter := bson.M{"_id": id, "organizationId": orgID, "attachments.url": bson.M{"$ne": a.URL}}
	update := bson.M{"$push": bson.M{"attachments": a}, "$currentDate": bson.M{"updatedAt": true}}
	return m.findAndUpdate(ctx, orgID, id, filter, update, ErrAttachmentExists)
}

func (m *MongoRepo) RemoveAttachment(ctx context.Context, orgID, id, url string) (*draft.Draft, error) {
	filter := bson.M{"_id": id, "organizationId": orgID}
	update := bson.M{"$pull": bson.M{"attachments": bson.M{"url": url}}, "$currentDate": bson.M{"updatedAt": true}}
	return m.findAndUpdate(ctx, orgID, id, filter, update, ErrNotFound)
}

// findAndUpdate applies update to the document matching filter. When nothing
// matches it tells a missing draft apart from a failed guard, returning
// guardErr for the latter.
func (m *MongoRepo) findAndUpdate(ctx context.Context, orgID, id string, filter, update bson.M, guardErr error) (*draft.Draft, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d draft.Draft
	err := m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update draft %s: %w", id, err)
	}
	if _, err := m.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return nil, guardErr
}
