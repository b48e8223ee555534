package limiter

import (
	"context"
	"time"

	"go.trai.ch/zerr"
)

// Category groups requests that share one policy.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryAuth      Category = "auth"
	CategorySearch    Category = "search"
	CategoryUpload    Category = "upload"
	CategoryMessaging Category = "messaging"
)

// Categories lists the built-in categories.
var Categories = []Category{
	CategoryGeneral,
	CategoryAuth,
	CategorySearch,
	CategoryUpload,
	CategoryMessaging,
}

// Policies maps each category to its limit.
type Policies map[Category]Limit

// DefaultPolicies returns the storefront defaults.
func DefaultPolicies() Policies {
	return Policies{
		CategoryGeneral:   {Window: 15 * time.Minute, MaxRequests: 100},
		CategoryAuth:      {Window: 15 * time.Minute, MaxRequests: 5},
		CategorySearch:    {Window: time.Minute, MaxRequests: 30},
		CategoryUpload:    {Window: time.Minute, MaxRequests: 10},
		CategoryMessaging: {Window: time.Minute, MaxRequests: 20},
	}
}

// Guard applies per-category policies on top of one RateLimiter. The category
// becomes the identity namespace, so categories never share counters.
type Guard struct {
	limiter  RateLimiter
	policies Policies
	identify IdentityFunc
}

// NewGuard validates every policy. A nil identify uses Composite.
func NewGuard(l RateLimiter, policies Policies, identify IdentityFunc) (*Guard, error) {
	if identify == nil {
		identify = Composite
	}
	copied := make(Policies, len(policies))
	for cat, limit := range policies {
		if err := limit.Validate(); err != nil {
			return nil, zerr.With(err, "category", string(cat))
		}
		copied[cat] = limit
	}
	return &Guard{limiter: l, policies: copied, identify: identify}, nil
}

// Policy returns the limit configured for cat.
func (g *Guard) Policy(cat Category) (Limit, bool) {
	limit, ok := g.policies[cat]
	return limit, ok
}

func (g *Guard) resolve(cat Category, info RequestInfo) (Identity, Limit, error) {
	limit, ok := g.policies[cat]
	if !ok {
		return Identity{}, Limit{}, zerr.With(ErrUnknownCategory, "category", string(cat))
	}
	return Identity{Namespace: Namespace(cat), Key: g.identify(info)}, limit, nil
}

// Check counts one request of the caller against cat.
func (g *Guard) Check(ctx context.Context, cat Category, info RequestInfo) (Decision, error) {
	id, limit, err := g.resolve(cat, info)
	if err != nil {
		return Decision{}, err
	}
	return g.limiter.Allow(ctx, id, limit)
}

// Reset restores the caller's full quota in cat.
func (g *Guard) Reset(ctx context.Context, cat Category, info RequestInfo) error {
	id, limit, err := g.resolve(cat, info)
	if err != nil {
		return err
	}
	return g.limiter.Reset(ctx, id, limit)
}

// Info reports the caller's state in cat without counting.
func (g *Guard) Info(ctx context.Context, cat Category, info RequestInfo) (Decision, error) {
	id, limit, err := g.resolve(cat, info)
	if err != nil {
		return Decision{}, err
	}
	return g.limiter.Info(ctx, id, limit)
}
