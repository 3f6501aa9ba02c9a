package main

import (
	"context"
	"sync/atomic"
	"time"

	"sweepsapp/cache"

	"github.com/sirupsen/logrus"
)

const onlineKey = "feed:online"

// onlineCounter counts connected sockets. With Redis the count is shared by
// every feed instance, otherwise it is local to this process.
type onlineCounter struct {
	local  int64
	shared *cache.Redis
}

func newOnlineCounter(shared *cache.Redis) *onlineCounter {
	return &onlineCounter{shared: shared}
}

// Add moves the count by delta and returns the new total.
func (o *onlineCounter) Add(delta int64) int64 {
	n := atomic.AddInt64(&o.local, delta)
	if o.shared == nil {
		return n
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	total, err := o.shared.Incr(ctx, onlineKey, delta, 24*time.Hour)
	if err != nil {
		logrus.WithError(err).Warn("Failed to update shared online count")
		return n
	}
	return total
}

func (o *onlineCounter) Local() int64 {
	return atomic.LoadInt64(&o.local)
}

func (o *onlineCounter) Count() int64 {
	if o.shared == nil {
		return o.Local()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var total int64
	found, err := o.shared.Get(ctx, onlineKey, &total)
	if err != nil || !found {
		return o.Local()
	}
	if total < 0 {
		return 0
	}
	return total
}
