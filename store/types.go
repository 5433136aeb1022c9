package store

import "maps"

// Endpoint identifies one metered API operation. The set of endpoints is
// closed: a Permission may only be created for a value listed below, and at
// most one Permission exists per endpoint at any time.
type Endpoint string

// Known metered endpoints.
const (
	EndpointRandom1 Endpoint = "random1"
	EndpointRandom2 Endpoint = "random2"
	EndpointRandom3 Endpoint = "random3"
	EndpointRandom4 Endpoint = "random4"
	EndpointRandom5 Endpoint = "random5"
	EndpointRandom6 Endpoint = "random6"
)

// Endpoints lists every member of the closed endpoint enumeration.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointRandom1, EndpointRandom2, EndpointRandom3,
		EndpointRandom4, EndpointRandom5, EndpointRandom6,
	}
}

// Valid reports whether e is a member of the closed endpoint enumeration.
func (e Endpoint) Valid() bool {
	switch e {
	case EndpointRandom1, EndpointRandom2, EndpointRandom3,
		EndpointRandom4, EndpointRandom5, EndpointRandom6:
		return true
	}
	return false
}

// Role is the closed set of principal roles.
type Role string

const (
	// RoleUser may subscribe to plans and accrue metered usage.
	RoleUser Role = "user"
	// RoleAdmin manages the permission and plan catalog.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Permission is one metered API capability. ID is assigned by the store on
// insert and immutable afterwards.
type Permission struct {
	ID          string   `bson:"_id,omitempty" json:"id"`
	Name        string   `bson:"name" json:"name"`
	Endpoint    Endpoint `bson:"endpoint" json:"endpoint"`
	Description string   `bson:"description" json:"description"`
}

// Plan bundles permissions with per-permission call ceilings. APILimit maps
// permission IDs to positive call ceilings and must contain at least one
// entry; every key must reference an existing Permission at write time.
type Plan struct {
	ID       string           `bson:"_id,omitempty" json:"id"`
	Name     string           `bson:"name" json:"name"`
	APILimit map[string]int64 `bson:"apilimit" json:"apilimit"`
}

// User is a principal. Password holds an opaque credential (a bcrypt hash;
// the store never interprets it). When SubscribedPlanID is set,
// CurrentAPIUsage tracks one non-negative counter per permission in the
// subscribed plan's limit table.
type User struct {
	ID               string           `bson:"_id,omitempty" json:"id"`
	Username         string           `bson:"username" json:"username"`
	Role             Role             `bson:"role" json:"role"`
	Password         string           `bson:"password" json:"-"`
	SubscribedPlanID string           `bson:"subscribed_plan_id,omitempty" json:"subscribed_plan_id,omitempty"`
	CurrentAPIUsage  map[string]int64 `bson:"current_api_usage,omitempty" json:"current_api_usage,omitempty"`
}

// Clone returns a deep copy of the user, so callers can hand out snapshots
// without aliasing the usage counter map.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.CurrentAPIUsage = maps.Clone(u.CurrentAPIUsage)
	return &c
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.APILimit = maps.Clone(p.APILimit)
	return &c
}
