package mongodb

import (
	"context"
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/planmeter/planmeter/store"
)

type userDoc struct {
	ID               bson.ObjectID    `bson:"_id,omitempty"`
	Username         string           `bson:"username"`
	Role             string           `bson:"role"`
	Password         string           `bson:"password"`
	SubscribedPlanID string           `bson:"subscribed_plan_id,omitempty"`
	CurrentAPIUsage  map[string]int64 `bson:"current_api_usage,omitempty"`
}

func (d userDoc) toUser() store.User {
	return store.User{
		ID:               d.ID.Hex(),
		Username:         d.Username,
		Role:             store.Role(d.Role),
		Password:         d.Password,
		SubscribedPlanID: d.SubscribedPlanID,
		CurrentAPIUsage:  maps.Clone(d.CurrentAPIUsage),
	}
}

// CreateUser inserts the user with a fresh ObjectID.
func (s *Store) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	doc := userDoc{
		ID:               bson.NewObjectID(),
		Username:         u.Username,
		Role:             string(u.Role),
		Password:         u.Password,
		SubscribedPlanID: u.SubscribedPlanID,
		CurrentAPIUsage:  maps.Clone(u.CurrentAPIUsage),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return nil, wrapErr(err, store.ErrUserNotFound)
	}
	created := doc.toUser()
	return &created, nil
}

// User returns the user with the given ID.
func (s *Store) User(ctx context.Context, id string) (*store.User, error) {
	docID, err := oid(id)
	if err != nil {
		return nil, err
	}

	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrUserNotFound)
	}
	u := doc.toUser()
	return &u, nil
}

// UserByUsername returns the user holding the username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*store.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrUserNotFound)
	}
	u := doc.toUser()
	return &u, nil
}

// UserSubscribedToPlan returns some user whose subscribed plan is planID.
func (s *Store) UserSubscribedToPlan(ctx context.Context, planID string) (*store.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"subscribed_plan_id": planID}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrUserNotFound)
	}
	u := doc.toUser()
	return &u, nil
}

// ReplaceSubscription swaps the subscription and the whole counter table in
// one conditional update keyed on the previously observed plan, so a stale
// reinitialization cannot silently overwrite counters written after the
// caller's snapshot.
func (s *Store) ReplaceSubscription(ctx context.Context, userID, planID string, usage map[string]int64, expectedPlanID string) error {
	docID, err := oid(userID)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": docID}
	if expectedPlanID == "" {
		filter["subscribed_plan_id"] = bson.M{"$in": bson.A{nil, ""}}
	} else {
		filter["subscribed_plan_id"] = expectedPlanID
	}

	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"subscribed_plan_id": planID,
		"current_api_usage":  usage,
	}})
	if err != nil {
		return wrapErr(err, store.ErrUserNotFound)
	}
	if res.MatchedCount == 0 {
		if err := s.users.FindOne(ctx, bson.M{"_id": docID}).Err(); err != nil {
			return wrapErr(err, store.ErrUserNotFound)
		}
		return store.ErrConflict
	}
	return nil
}

// IncrementUsage bumps one counter by exactly one in a single conditional
// update; the filter requires the counter to exist and sit strictly below
// the plan ceiling, so concurrent callers cannot lose increments or push a
// counter past its limit.
func (s *Store) IncrementUsage(ctx context.Context, userID, permissionID string, limit int64) error {
	docID, err := oid(userID)
	if err != nil {
		return err
	}

	field := "current_api_usage." + permissionID
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": docID, field: bson.M{"$lt": limit}},
		bson.M{"$inc": bson.M{field: int64(1)}},
	)
	if err != nil {
		return wrapErr(err, store.ErrUserNotFound)
	}
	if res.MatchedCount == 0 {
		if err := s.users.FindOne(ctx, bson.M{"_id": docID}).Err(); err != nil {
			return wrapErr(err, store.ErrUserNotFound)
		}
		return store.ErrConflict
	}
	return nil
}
