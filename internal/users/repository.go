package users

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already set up")
)

// UserRepository defines persistence operations for users and organizations
type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	// CreateWithOrganization writes both records or neither.
	CreateWithOrganization(ctx context.Context, org *models.Organization, u *models.User) error
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
}

type MemoryUserRepository struct {
	mu    sync.Mutex
	clock clock.Clock
	users map[string]models.User
	orgs  map[string]models.Organization
}

func NewMemoryUserRepository(c clock.Clock) *MemoryUserRepository {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryUserRepository{clock: c, users: map[string]models.User{}, orgs: map[string]models.Organization{}}
}

func (r *MemoryUserRepository) Get(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *MemoryUserRepository) CreateWithOrganization(_ context.Context, org *models.Organization, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return ErrExists
	}
	now := r.clock.Now()
	org.CreatedAt = now
	u.CreatedAt, u.UpdatedAt = now, now
	r.orgs[org.ID] = *org
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepository) UpdateRole(_ context.Context, id string, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = r.clock.Now()
	r.users[id] = u
	return &u, nil
}

// MongoUserRepository implements UserRepository using MongoDB. The setup
// batch runs in a transaction, so the server needs a replica set.
type MongoUserRepository struct {
	client *mongo.Client
	users  *mongo.Collection
	orgs   *mongo.Collection
	clock  clock.Clock
}

func NewMongoUserRepository(client *mongo.Client, db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{client: client, users: db.Collection("users"), orgs: db.Collection("organizations"), clock: clock.Real{}}
}

func (r *MongoUserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var o models.Organization
	if err := r.orgs.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

func (r *MongoUserRepository) CreateWithOrganization(ctx context.Context, org *models.Organization, u *models.User) error {
	now := r.clock.Now()
	org.CreatedAt = now
	u.CreatedAt, u.UpdatedAt = now, now

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.orgs.InsertOne(sc, org); err != nil {
			return nil, err
		}
		if _, err := r.users.InsertOne(sc, u); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"role": role}, "$currentDate": bson.M{"updatedAt": true}}
	var u models.User
	if err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	return &u, nil
}
