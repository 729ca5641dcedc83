package repository

import "context"

// UserRepository exposes the minimum the background jobs need: the set of
// users to fan detection out over.
type UserRepository interface {
	ListIDs(ctx context.Context, tx Tx) ([]string, error)
}
