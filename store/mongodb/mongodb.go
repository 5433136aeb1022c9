// Package mongodb implements store.Store on top of a MongoDB database using
// the official driver v2.
//
// Collection layout:
//
//	permissions { _id, name, endpoint, description }
//	plans       { _id, name, apilimit: { <permissionIdHex>: <int64> } }
//	users       { _id, username, role, password, subscribed_plan_id?,
//	              current_api_usage?: { <permissionIdHex>: <int64> } }
//
// Limit-table and counter keys are permission ID hex strings (BSON map keys
// must be strings); only _id fields are native ObjectIDs.
//
// Mutations that the service layer gates on prior state are expressed as
// single conditional updates so the check and the write are observed
// together: the update filter carries the expected prior value and a filter
// miss on an existing document surfaces as store.ErrConflict.
package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/planmeter/planmeter/store"
)

// Collection names.
const (
	permissionsCollection = "permissions"
	plansCollection       = "plans"
	usersCollection       = "users"
)

// Store is a MongoDB-backed implementation of store.Store.
type Store struct {
	permissions *mongo.Collection
	plans       *mongo.Collection
	users       *mongo.Collection
}

// New wraps the given database. Call EnsureIndexes once during startup
// before serving traffic.
func New(db *mongo.Database) *Store {
	return &Store{
		permissions: db.Collection(permissionsCollection),
		plans:       db.Collection(plansCollection),
		users:       db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique indexes backing the endpoint and username
// invariants. The service layer checks uniqueness before writing; the
// indexes close the race between concurrent creates.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}
	return nil
}

// oid converts a pre-validated hex identifier into a native ObjectID.
func oid(id string) (bson.ObjectID, error) {
	v, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, errors.Join(store.ErrInvalidID, err)
	}
	return v, nil
}

// wrapErr maps driver errors onto store sentinels. mongo.ErrNoDocuments maps
// to the entity's notFound sentinel; duplicate-key violations map to
// ErrDuplicateKey; anything else (timeouts, server selection failures) is
// treated as the store being unavailable.
func wrapErr(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicateKey
	default:
		return errors.Join(store.ErrUnavailable, err)
	}
}
