package service

import (
	"context"
	"time"
)

// listingCache is the slice of the cache repository the content services
// use for unfiltered listing pages.
type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// endOfDay widens a date to the last instant of that day so an inclusive
// "until" filter covers everything created on it.
func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
