package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// keyNamespace scopes operation keys to this service
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:tiered-staking:ledger"))

type idempotencyKey struct{}

// OperationKey derives a stable idempotency key from the operation name and
// the state it applies to. The same inputs always give the same key.
func OperationKey(parts ...string) string {
	return uuid.NewSHA1(keyNamespace, []byte(strings.Join(parts, "|"))).String()
}

// WithIdempotencyKey attaches key to ctx for the next ledger call
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key attached to ctx, if any
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}
