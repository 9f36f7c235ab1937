package models

// User is the authenticated caller as seen by the reaction API. Identity is
// issued elsewhere; only the id travels with a request.
type User struct {
	ID int64 `json:"id"`
}
