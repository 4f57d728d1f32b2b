// Command respooldemo drives a toy respool.Pool with concurrent load and logs
// the pool's lifecycle and error events. It is not part of the respool
// package itself.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tpelling/go-respool"
)

// conn is a toy resource: a monotonically increasing identity plus a flag a
// caller can flip to force Reset to discard it.
type conn struct {
	id     int64
	broken bool
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var nextID atomic.Int64
	var createErrs atomic.Int32

	factory := respool.Factory[*conn]{
		Create: func(ctx context.Context) (*conn, error) {
			// Fail the first couple of attempts to show the error event and
			// create-failure counter in the logs without tripping the
			// pool's 10-strike shutdown threshold.
			if createErrs.Add(1) <= 2 {
				return nil, fmt.Errorf("demo: transient dial failure")
			}
			return &conn{id: nextID.Add(1)}, nil
		},
		Destroy: func(ctx context.Context, c *conn) error {
			log.Info("destroyed connection", "id", c.id)
			return nil
		},
		Reset: func(c *conn) error {
			if c.broken {
				return errors.New("demo: connection left in a bad state")
			}
			return nil
		},
	}

	opts := respool.DefaultOptions()
	opts.MaxOpenCount = 8
	opts.MaxIdleCount = 4
	opts.MaxIdleTime = 200 * time.Millisecond

	pool, err := respool.New(factory, opts)
	if err != nil {
		log.Error("failed to construct pool", "error", err)
		os.Exit(1)
	}

	unsubscribe := pool.OnError(func(action respool.Action, err error) {
		log.Warn("factory error", "action", action.String(), "error", err)
	})
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			item, err := pool.Get(ctx)
			if err != nil {
				if respool.IsCanceled(err) {
					log.Info("get canceled", "worker", i)
					return nil
				}
				log.Warn("get failed", "worker", i, "error", err)
				return nil
			}
			defer pool.Release(item)

			item.broken = rand.Intn(10) == 0
			log.Info("borrowed connection", "worker", i, "id", item.id, "broken", item.broken)
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			return nil
		})
	}
	_ = g.Wait()

	stats := pool.Stats()
	log.Info("final stats",
		"count", stats.Count,
		"inUse", stats.InUseCount,
		"idle", stats.IdleCount,
		"waiting", stats.WaitCount,
		"maxIdleClosed", stats.MaxIdleClosed,
		"maxIdleTimeClosed", stats.MaxIdleTimeClosed,
		"maxLifetimeClosed", stats.MaxLifetimeClosed,
	)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	if err := pool.Close(closeCtx, nil); err != nil {
		log.Error("close failed", "error", err)
	}
}
