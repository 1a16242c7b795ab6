// Package ownership loads user-owned records and hides records that belong
// to someone else behind the loader's not-found error.
package ownership

import "context"

// Load fetches id and returns notFound when the record is owned by a user
// other than callerID. Loader errors are returned untouched.
func Load[T any](ctx context.Context, load func(ctx context.Context, id string) (T, error), ownerOf func(T) string, id, callerID string, notFound error) (T, error) {
	var zero T

	v, err := load(ctx, id)
	if err != nil {
		return zero, err
	}
	if !Owns(ownerOf(v), callerID) {
		return zero, notFound
	}
	return v, nil
}

// Owns reports whether ownerID matches callerID. Empty ids never match.
func Owns(ownerID, callerID string) bool {
	return ownerID != "" && ownerID == callerID
}
