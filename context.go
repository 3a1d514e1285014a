package tokenward

import "context"

type principalContextKey struct{}

// WithPrincipal attaches the caller's principal key to ctx. The Keeper uses
// it for audit attribution and, when persistence is enabled, as the token
// store key in place of the configured default.
//
//	Docs: docs/keeper.md, docs/store.md
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

func principalFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	principal, _ := ctx.Value(principalContextKey{}).(string)
	return principal
}
