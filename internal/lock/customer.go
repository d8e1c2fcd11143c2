// Package lock serializes admission per customer across processes. Two
// concurrent triggers for the same customer must not both pass the guard
// before either's history entry is visible; a short redis SET NX lease makes
// check-then-append effectively single-writer per customer.
package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nkarimi/automsg-engine/internal/util"
	"github.com/redis/go-redis/v9"
)

var ErrBusy = fmt.Errorf("customer lock busy")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type CustomerLocks struct {
	rds    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCustomerLocks(rds *redis.Client, ttl time.Duration) *CustomerLocks {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &CustomerLocks{rds: rds, prefix: "automsg:lock:cust:", ttl: ttl}
}

// WithCustomer runs fn while holding the customer's lease. Returns ErrBusy
// without running fn when another holder has it; the caller retries on the
// next poll cycle. A nil redis client degrades to no locking (dev mode).
func (l *CustomerLocks) WithCustomer(ctx context.Context, customerID int64, fn func() error) error {
	if l == nil || l.rds == nil {
		return fn()
	}

	key := l.prefix + strconv.FormatInt(customerID, 10)
	token := util.NewID()

	ok, err := l.rds.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire customer lock: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	defer func() {
		_ = l.rds.Eval(context.WithoutCancel(ctx), releaseScript, []string{key}, token).Err()
	}()

	return fn()
}
