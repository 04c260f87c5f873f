package access

import (
	"time"

	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
)

// Default cache windows for queries
const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 10 * time.Minute
)

type operationOptions struct {
	name           string
	enabled        bool
	staleTime      time.Duration
	gcTime         time.Duration
	refetchOnMount bool
	refetchOnFocus bool
	stillEnabled   func() bool
	requiredRole   string
	invalidate     []cache.Key
	retry          *RetryPolicy
}

// Option configures a Query or a Mutation.
// Options that only make sense for one of them are ignored by the other.
type Option func(*operationOptions)

// WithName sets the operation name used in audit lines, metrics and spans
func WithName(name string) Option {
	return func(o *operationOptions) {
		o.name = name
	}
}

// WithEnabled gates a query in addition to the access decision.
// A disabled query is idle; it neither runs nor reports an error.
func WithEnabled(enabled bool) Option {
	return func(o *operationOptions) {
		o.enabled = enabled
	}
}

// WithStaleTime sets how long a cached query result is served without refetching
func WithStaleTime(d time.Duration) Option {
	return func(o *operationOptions) {
		o.staleTime = d
	}
}

// WithGCTime sets how long an unused query result stays cached
func WithGCTime(d time.Duration) Option {
	return func(o *operationOptions) {
		o.gcTime = d
	}
}

// WithRefetchOnMount makes every Fetch bypass a fresh cached result
func WithRefetchOnMount(v bool) Option {
	return func(o *operationOptions) {
		o.refetchOnMount = v
	}
}

// WithRefetchOnFocus makes Refocus bypass a fresh cached result
func WithRefetchOnFocus(v bool) Option {
	return func(o *operationOptions) {
		o.refetchOnFocus = v
	}
}

// WithStillEnabled sets a probe consulted when a query body completes.
// If it reports false the result is discarded.
func WithStillEnabled(fn func() bool) Option {
	return func(o *operationOptions) {
		o.stillEnabled = fn
	}
}

// WithRequiredRole restricts the operation to actors holding role
func WithRequiredRole(role string) Option {
	return func(o *operationOptions) {
		o.requiredRole = role
	}
}

// WithInvalidate lists the query keys a successful mutation invalidates.
// Keys are given without the tenant id.
func WithInvalidate(keys ...cache.Key) Option {
	return func(o *operationOptions) {
		o.invalidate = append(o.invalidate, keys...)
	}
}

// WithRetryPolicy overrides the executor's retry policy for one mutation
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *operationOptions) {
		o.retry = &p
	}
}

func newOperationOptions(defaultName string, staleTime, gcTime time.Duration, opts []Option) operationOptions {
	o := operationOptions{
		name:      defaultName,
		enabled:   true,
		staleTime: staleTime,
		gcTime:    gcTime,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
