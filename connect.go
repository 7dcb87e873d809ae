package mongolog

import (
	"context"
	"fmt"
	"time"

	"github.com/bitdabbler/backoff"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	defaultDialTimeout  = time.Second * 30
	defaultConnectTries = 10
)

// Connect creates a MongoDB client for c.URI and pings the primary until it
// answers, backing off exponentially between attempts. It gives up after
// c.ConnectTries attempts (default 10); a negative value retries until ctx is
// done. Each attempt is bounded by c.DialTimeout (default 30s).
//
// The returned client is owned by the caller, who must Disconnect it after
// the logging stack has been shut down.
func Connect(ctx context.Context, c *Config) (*mongo.Client, *mongo.Collection, error) {
	dialTimeout := c.DialTimeout
	if dialTimeout < 1 {
		dialTimeout = defaultDialTimeout
	}
	maxAttempts := c.ConnectTries
	if maxAttempts == 0 {
		maxAttempts = defaultConnectTries
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(dialTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	if err := tryPing(ctx, client, dialTimeout, maxAttempts, c.Verbose); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}

	return client, client.Database(c.Database).Collection(c.Collection), nil
}

func tryPing(ctx context.Context, client *mongo.Client, timeout time.Duration, maxAttempts int, verbose bool) error {
	b, err := backoff.New(
		backoff.WithInitialDelay(0),
		backoff.WithExponentialLimit(time.Second*20),
	)
	if err != nil {
		return err
	}

	return retry(ctx, b, maxAttempts, verbose, func(ctx context.Context) error {
		return ping(ctx, client, timeout)
	})
}

// retry calls fn until it succeeds, maxAttempts is reached (if positive) or
// ctx is done, waiting on b between attempts.
func retry(ctx context.Context, b *backoff.Backoff, maxAttempts int, verbose bool, fn func(context.Context) error) error {
	debug := func(format string, args ...any) {
		if verbose {
			InternalLogger().Printf(format, args...)
		}
	}

	var err error
	i := 0
	for {
		i++
		err = fn(ctx)
		if err == nil {
			debug("successfully connected to MongoDB\n")
			return nil
		}

		debug("failed to reach MongoDB on attempt %d: %v\n", i, err)

		if maxAttempts > 0 && i >= maxAttempts {
			break
		}
		if err := sleep(ctx, b); err != nil {
			return fmt.Errorf("gave up connecting to MongoDB: %w", err)
		}
	}

	return fmt.Errorf("failed to connect to MongoDB; maxAttempts reached: %d: %w", maxAttempts, err)
}

// sleep waits for the next backoff delay, or until ctx is done. b must not be
// used again after sleep returns an error.
func sleep(ctx context.Context, b *backoff.Backoff) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		b.Sleep()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ping(ctx context.Context, client *mongo.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}
