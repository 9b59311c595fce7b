package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// QueryCache stores decoded API responses for a bounded staleness window.
type QueryCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Scope derives a per-token namespace so tenants never share entries. The
// token itself never appears in a key.
func Scope(token string) string {
	return strconv.FormatUint(xxhash.Sum64String(token), 16)
}

// Key builds "query:<scope>:<part>:<part>...".
func Key(scope string, parts ...string) string {
	return "query:" + scope + ":" + strings.Join(parts, ":")
}
