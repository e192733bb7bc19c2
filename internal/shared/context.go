package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// CurrentUser returns the authenticated user from the request context, nil
// when the session is absent or anonymous.
func CurrentUser(ctx context.Context) *UserProfile {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return nil
	}
	return sess.User()
}

// CurrentToken returns the backend bearer credential for the request, empty
// when unauthenticated.
func CurrentToken(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return ""
	}
	return sess.Token()
}
