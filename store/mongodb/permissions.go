package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/planmeter/planmeter/store"
)

type permissionDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Name        string        `bson:"name"`
	Endpoint    string        `bson:"endpoint"`
	Description string        `bson:"description"`
}

func (d permissionDoc) toPermission() store.Permission {
	return store.Permission{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Endpoint:    store.Endpoint(d.Endpoint),
		Description: d.Description,
	}
}

// CreatePermission inserts the permission with a fresh ObjectID.
func (s *Store) CreatePermission(ctx context.Context, p *store.Permission) (*store.Permission, error) {
	doc := permissionDoc{
		ID:          bson.NewObjectID(),
		Name:        p.Name,
		Endpoint:    string(p.Endpoint),
		Description: p.Description,
	}
	if _, err := s.permissions.InsertOne(ctx, doc); err != nil {
		return nil, wrapErr(err, store.ErrPermissionNotFound)
	}
	created := doc.toPermission()
	return &created, nil
}

// Permission returns the permission with the given ID.
func (s *Store) Permission(ctx context.Context, id string) (*store.Permission, error) {
	docID, err := oid(id)
	if err != nil {
		return nil, err
	}

	var doc permissionDoc
	if err := s.permissions.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrPermissionNotFound)
	}
	p := doc.toPermission()
	return &p, nil
}

// PermissionByEndpoint returns the permission holding the endpoint.
func (s *Store) PermissionByEndpoint(ctx context.Context, e store.Endpoint) (*store.Permission, error) {
	var doc permissionDoc
	if err := s.permissions.FindOne(ctx, bson.M{"endpoint": string(e)}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrPermissionNotFound)
	}
	p := doc.toPermission()
	return &p, nil
}

// Permissions returns every permission in the catalog.
func (s *Store) Permissions(ctx context.Context) ([]store.Permission, error) {
	cur, err := s.permissions.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(err, store.ErrPermissionNotFound)
	}
	defer cur.Close(ctx)

	var out []store.Permission
	for cur.Next(ctx) {
		var doc permissionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, wrapErr(err, store.ErrPermissionNotFound)
		}
		out = append(out, doc.toPermission())
	}
	if err := cur.Err(); err != nil {
		return nil, wrapErr(err, store.ErrPermissionNotFound)
	}
	return out, nil
}

// UpdatePermission overwrites the mutable fields, conditioned on the
// document still holding expectedEndpoint. A filter miss on an existing
// document means a concurrent endpoint change and surfaces as ErrConflict.
func (s *Store) UpdatePermission(ctx context.Context, p *store.Permission, expectedEndpoint store.Endpoint) error {
	docID, err := oid(p.ID)
	if err != nil {
		return err
	}

	res, err := s.permissions.UpdateOne(ctx,
		bson.M{"_id": docID, "endpoint": string(expectedEndpoint)},
		bson.M{"$set": bson.M{
			"name":        p.Name,
			"endpoint":    string(p.Endpoint),
			"description": p.Description,
		}},
	)
	if err != nil {
		return wrapErr(err, store.ErrPermissionNotFound)
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing document from a lost conditional race.
		if err := s.permissions.FindOne(ctx, bson.M{"_id": docID}).Err(); err != nil {
			return wrapErr(err, store.ErrPermissionNotFound)
		}
		return store.ErrConflict
	}
	return nil
}

// DeletePermission removes the permission.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	docID, err := oid(id)
	if err != nil {
		return err
	}

	res, err := s.permissions.DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return wrapErr(err, store.ErrPermissionNotFound)
	}
	if res.DeletedCount == 0 {
		return store.ErrPermissionNotFound
	}
	return nil
}
