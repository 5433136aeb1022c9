// Package store defines the persisted entities of the access-management
// backend and the persistence contracts the domain services depend on.
//
// Three collections are persisted: permissions, plans, and users. The store
// is the sole writer of persisted documents and the sole assigner of entity
// identity; it carries no business rules. Referential integrity between the
// collections is enforced by the service layer (svc/catalog), which uses the
// read methods exposed here to decide whether a mutation is admissible.
//
// Identifiers are MongoDB ObjectIDs surfaced as 24-character hex strings.
// Every externally supplied identifier must pass through ParseID before it
// reaches a store implementation; a malformed identifier never hits the
// database.
//
// Two implementations exist: store/mongodb for production and store/memory
// for tests and local development. Both honor the conditional-update
// semantics documented on the interface methods, which the services rely on
// to stay correct under concurrent access:
//
//   - permission updates are conditioned on the previously observed endpoint
//   - subscription replacement is conditioned on the previously observed
//     subscribed plan
//   - usage increments are conditioned on the counter being below the plan
//     ceiling
//
// A conditional update that finds the document but not the expected prior
// state fails with ErrConflict, which callers treat as a retry signal.
package store
