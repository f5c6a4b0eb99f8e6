package guard

import (
	"context"

	"github.com/dynatos/pos-terminal/internal/domain"
)

type ctxKey struct{}

func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// SessionFrom returns the session admitted by Require.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(domain.Session)
	return sess, ok
}
