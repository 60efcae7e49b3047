// Package ratelimit admits or rejects generation requests per client.
//
// Both backends keep a sliding-window log: a request is admitted only if
// fewer than Limit requests were admitted for the same client and bucket
// within the last Window. Unlike a token bucket or a fixed window this
// bounds every window of that length, not just an average.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jwebster45206/pixel-quest/pkg/story"
)

// Bucket names an independent quota.
type Bucket string

const (
	BucketStory Bucket = "story"
	BucketImage Bucket = "image"
)

// Policy is the quota for one bucket.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicies returns 20 story and 4 image requests per minute.
func DefaultPolicies() map[Bucket]Policy {
	return map[Bucket]Policy{
		BucketStory: {Limit: 20, Window: time.Minute},
		BucketImage: {Limit: 4, Window: time.Minute},
	}
}

// Limiter records an admission if one is available.
type Limiter interface {
	Allow(ctx context.Context, clientID string, bucket Bucket) (bool, error)
}

// Admit returns story.ErrRateLimitExceeded when l rejects the request.
func Admit(ctx context.Context, l Limiter, clientID string, bucket Bucket) error {
	ok, err := l.Allow(ctx, clientID, bucket)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s quota exhausted", story.ErrRateLimitExceeded, bucket)
	}
	return nil
}

func lookup(policies map[Bucket]Policy, bucket Bucket) (Policy, error) {
	p, ok := policies[bucket]
	if !ok {
		return Policy{}, fmt.Errorf("unknown bucket %q", bucket)
	}
	if p.Limit <= 0 || p.Window <= 0 {
		return Policy{}, fmt.Errorf("invalid policy for bucket %q", bucket)
	}
	return p, nil
}

// Unlimited admits everything. The console uses it when it drives the
// engine directly.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, Bucket) (bool, error) { return true, nil }
