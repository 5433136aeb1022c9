package mongodb

import (
	"context"
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/planmeter/planmeter/store"
)

type planDoc struct {
	ID       bson.ObjectID    `bson:"_id,omitempty"`
	Name     string           `bson:"name"`
	APILimit map[string]int64 `bson:"apilimit"`
}

func (d planDoc) toPlan() store.Plan {
	return store.Plan{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		APILimit: maps.Clone(d.APILimit),
	}
}

// CreatePlan inserts the plan with a fresh ObjectID.
func (s *Store) CreatePlan(ctx context.Context, p *store.Plan) (*store.Plan, error) {
	doc := planDoc{
		ID:       bson.NewObjectID(),
		Name:     p.Name,
		APILimit: maps.Clone(p.APILimit),
	}
	if _, err := s.plans.InsertOne(ctx, doc); err != nil {
		return nil, wrapErr(err, store.ErrPlanNotFound)
	}
	created := doc.toPlan()
	return &created, nil
}

// Plan returns the plan with the given ID.
func (s *Store) Plan(ctx context.Context, id string) (*store.Plan, error) {
	docID, err := oid(id)
	if err != nil {
		return nil, err
	}

	var doc planDoc
	if err := s.plans.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrPlanNotFound)
	}
	p := doc.toPlan()
	return &p, nil
}

// Plans returns every plan in the catalog.
func (s *Store) Plans(ctx context.Context) ([]store.Plan, error) {
	cur, err := s.plans.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(err, store.ErrPlanNotFound)
	}
	defer cur.Close(ctx)

	var out []store.Plan
	for cur.Next(ctx) {
		var doc planDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, wrapErr(err, store.ErrPlanNotFound)
		}
		out = append(out, doc.toPlan())
	}
	if err := cur.Err(); err != nil {
		return nil, wrapErr(err, store.ErrPlanNotFound)
	}
	return out, nil
}

// UpdatePlan overwrites the plan's mutable fields.
func (s *Store) UpdatePlan(ctx context.Context, p *store.Plan) error {
	docID, err := oid(p.ID)
	if err != nil {
		return err
	}

	res, err := s.plans.UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{
			"name":     p.Name,
			"apilimit": p.APILimit,
		}},
	)
	if err != nil {
		return wrapErr(err, store.ErrPlanNotFound)
	}
	if res.MatchedCount == 0 {
		return store.ErrPlanNotFound
	}
	return nil
}

// DeletePlan removes the plan.
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	docID, err := oid(id)
	if err != nil {
		return err
	}

	res, err := s.plans.DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return wrapErr(err, store.ErrPlanNotFound)
	}
	if res.DeletedCount == 0 {
		return store.ErrPlanNotFound
	}
	return nil
}

// PlanReferencingPermission returns some plan whose limit table contains the
// permission as a key, matching on field existence since the table is a
// schemaless map.
func (s *Store) PlanReferencingPermission(ctx context.Context, permissionID string) (*store.Plan, error) {
	var doc planDoc
	filter := bson.M{"apilimit." + permissionID: bson.M{"$exists": true}}
	if err := s.plans.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, wrapErr(err, store.ErrPlanNotFound)
	}
	p := doc.toPlan()
	return &p, nil
}
