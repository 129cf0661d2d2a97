package listing

import "github.com/Sternrassler/catalog-feed/pkg/catalog"

// Status is the observable phase of a list session.
type Status string

const (
	// StatusIdle means no query has been set yet.
	StatusIdle Status = "idle"

	// StatusLoadingInitial means page 1 of a new key is loading and no
	// items are shown.
	StatusLoadingInitial Status = "loading_initial"

	// StatusReady means items are shown and more pages may follow.
	StatusReady Status = "ready"

	// StatusLoadingMore means the next page is loading below the shown items.
	StatusLoadingMore Status = "loading_more"

	// StatusExhausted means every page has been fetched. Terminal until the
	// query changes.
	StatusExhausted Status = "exhausted"

	// StatusError means the last fetch failed. Shown items are retained.
	StatusError Status = "error"
)

// SessionState is a snapshot of what a view renders. Items must be treated
// as read-only.
type SessionState struct {
	Query  catalog.Query
	Key    string
	Status Status
	Items  []catalog.Item

	LoadingInitial bool
	LoadingMore    bool

	// Error is the user-facing message of the last failure, empty otherwise
	Error string

	// Err is the failure itself, for errors.Is checks
	Err error

	HasNext bool
	Total   int
	Page    int

	// Version increases with every state change
	Version uint64
}
