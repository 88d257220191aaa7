// Package reentry marks contexts that are inside an outbound value transfer,
// so settlement operations can reject nested re-entry into the scope they are
// already executing. The marker travels with the context handed to transfer
// recipients; a recipient that calls back into the same scope is detected
// before any lock is taken, which keeps re-entry an error instead of a
// deadlock.
package reentry

import "context"

type scopesKey struct{}

// Mark returns a context recording that scope is currently executing.
func Mark(ctx context.Context, scope string) context.Context {
	scopes := activeScopes(ctx)
	next := make(map[string]struct{}, len(scopes)+1)
	for s := range scopes {
		next[s] = struct{}{}
	}
	next[scope] = struct{}{}
	return context.WithValue(ctx, scopesKey{}, next)
}

// Active reports whether the context is already inside the given scope.
func Active(ctx context.Context, scope string) bool {
	_, ok := activeScopes(ctx)[scope]
	return ok
}

func activeScopes(ctx context.Context) map[string]struct{} {
	scopes, _ := ctx.Value(scopesKey{}).(map[string]struct{})
	return scopes
}
