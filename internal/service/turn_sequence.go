package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// nextTurnScript is a package-level Lua script. The Redis Go client
// automatically switches to EVALSHA after the first call, so under load
// only the script hash travels over the wire.
//
// Logic:
// 1. INCR the per-service-point daily counter
// 2. On the first increment of the day, attach the TTL so stale counters
//    expire on their own
// 3. Return the new counter value
var nextTurnScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// TurnSequenceKeyPrefix namespaces the daily ticket counters.
const TurnSequenceKeyPrefix = "turn:seq:"

// TurnSequence hands out the daily ticket numbers of each service point.
// The increment runs as a single atomic operation inside Redis, so ticket
// numbers are gap-free and never reused within a day regardless of how
// many requests race on the same service point.
type TurnSequence struct {
	client *redis.Client
	log    *logrus.Logger
	ttl    time.Duration
}

// NewTurnSequence creates a TurnSequence. ttl bounds how long a daily
// counter outlives its day.
func NewTurnSequence(client *redis.Client, log *logrus.Logger, ttl time.Duration) *TurnSequence {
	if ttl <= 0 {
		ttl = 26 * time.Hour
	}
	return &TurnSequence{client: client, log: log, ttl: ttl}
}

// Next returns the next ticket number for the service point on the given
// day (1-based).
func (s *TurnSequence) Next(ctx context.Context, servicePointID uuid.UUID, day time.Time) (int, error) {
	key := s.Key(servicePointID, day)

	n, err := nextTurnScript.Run(ctx, s.client, []string{key}, int(s.ttl.Seconds())).Int()
	if err != nil {
		s.log.Warnf("Failed turn sequence increment for service point %s: %+v", servicePointID, err)
		return 0, fmt.Errorf("turn sequence for service point %s: %w", servicePointID, err)
	}

	s.log.Debugf("Issued turn number %d for service point %s", n, servicePointID)
	return n, nil
}

// Key returns the counter key for a service point and day.
func (s *TurnSequence) Key(servicePointID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s%s:%s", TurnSequenceKeyPrefix, servicePointID, day.Format("20060102"))
}
