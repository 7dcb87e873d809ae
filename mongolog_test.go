package mongolog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// testCollection is a Collection that records every insert rather than send
// it to a server.
type testCollection struct {
	mu       sync.Mutex
	one      []bson.Raw   // InsertOne calls
	batches  [][]bson.Raw // InsertMany calls
	ordered  []bool       // ordered flag of each InsertMany call
	inserted []bson.Raw   // documents accepted by the "server"

	// err fails every call; reject fails single documents
	err    error
	reject func(bson.Raw) bool

	// entered, if set, receives a value when InsertMany starts, and release
	// blocks it until closed
	entered chan struct{}
	release chan struct{}
}

var _ Collection = (*testCollection)(nil)

var errRejected = errors.New("document rejected")

func (c *testCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := document.(bson.Raw)
	c.one = append(c.one, doc)
	if c.err != nil {
		return nil, c.err
	}
	if c.reject != nil && c.reject(doc) {
		return nil, errRejected
	}
	c.inserted = append(c.inserted, doc)
	return &mongo.InsertOneResult{}, nil
}

func (c *testCollection) InsertMany(_ context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error) {
	var args options.InsertManyOptions
	for _, o := range opts {
		for _, set := range o.List() {
			if err := set(&args); err != nil {
				return nil, err
			}
		}
	}
	ordered := args.Ordered == nil || *args.Ordered

	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.release != nil {
		<-c.release
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	docs := documents.([]bson.Raw)
	c.batches = append(c.batches, docs)
	c.ordered = append(c.ordered, ordered)
	if c.err != nil {
		return nil, c.err
	}

	// an ordered insert stops at the first rejected document
	failed := 0
	for _, d := range docs {
		if c.reject != nil && c.reject(d) {
			failed++
			if ordered {
				break
			}
			continue
		}
		c.inserted = append(c.inserted, d)
	}
	if failed > 0 {
		return &mongo.InsertManyResult{}, fmt.Errorf("%d of %d: %w", failed, len(docs), errRejected)
	}
	return &mongo.InsertManyResult{}, nil
}

func (c *testCollection) oneCalls() []bson.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bson.Raw(nil), c.one...)
}

func (c *testCollection) manyCalls() [][]bson.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]bson.Raw(nil), c.batches...)
}

func (c *testCollection) insertedDocs() []bson.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bson.Raw(nil), c.inserted...)
}

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testSink is a Sink that records documents in memory.
type testSink struct {
	mu     sync.Mutex
	docs   []bson.Raw
	err    error
	closed bool
}

func (s *testSink) Accept(_ context.Context, doc bson.Raw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *testSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *testSink) last(t *testing.T) bson.Raw {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.docs, "no documents received")
	return s.docs[len(s.docs)-1]
}

func (s *testSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// testDoc returns a document {"n": n}.
func testDoc(t *testing.T, n int) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(bson.D{{Key: "n", Value: int32(n)}})
	require.NoError(t, err)
	return bson.Raw(b)
}

// docN returns the "n" of a document made by testDoc.
func docN(t *testing.T, doc bson.Raw) int {
	t.Helper()
	v, err := doc.LookupErr("n")
	require.NoError(t, err)
	return int(v.Int32())
}

func batchNs(t *testing.T, docs []bson.Raw) []int {
	t.Helper()
	ns := make([]int, len(docs))
	for i, d := range docs {
		ns[i] = docN(t, d)
	}
	return ns
}

// docKeys returns the keys of doc's top-level elements, in order.
func docKeys(t *testing.T, doc bson.Raw) []string {
	t.Helper()
	elems, err := doc.Elements()
	require.NoError(t, err)
	keys := make([]string, len(elems))
	for i, e := range elems {
		keys[i] = e.Key()
	}
	return keys
}
