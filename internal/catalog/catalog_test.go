package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manenim/storefront/internal/listing"
	"github.com/manenim/storefront/pkg/search"
)

type stubSource struct {
	mu       sync.Mutex
	listings []listing.Listing
	err      error
	loads    int
}

func (s *stubSource) Load(context.Context) ([]listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return append([]listing.Listing(nil), s.listings...), nil
}

func (s *stubSource) set(listings []listing.Listing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings, s.err = listings, err
}

func newCatalog(t *testing.T, src listing.Source, opts ...Option) *Catalog {
	t.Helper()
	ix, err := search.NewIndexer[listing.Listing](listing.Schema(), nil)
	require.NoError(t, err)
	return New(src, ix, opts...)
}

var stock = []listing.Listing{
	{ID: "1", Make: "Honda", Model: "Civic", Year: 2020, Price: 18500, Fuel: "Petrol"},
	{ID: "2", Make: "Toyota", Model: "Corolla", Year: 2019, Price: 16000, Fuel: "Hybrid"},
	{ID: "3", Make: "Toyota", Model: "Hilux", Year: 2022, Price: 32000, Fuel: "Diesel"},
}

func TestCatalog_Reload(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	src := &stubSource{listings: stock}
	c := newCatalog(t, src, WithClock(clock))

	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Reload(ctx))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, clock.Now(), c.LoadedAt())
	assert.Equal(t, 3, c.Indexer().Stats().Records)

	l, ok := c.Get("3")
	require.True(t, ok)
	assert.Equal(t, "Hilux", l.Model)
	_, ok = c.Get("9")
	assert.False(t, ok)

	res := c.Search(ctx, "toyota")
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"Toyota"}, c.Suggest("toy", 5))

	fs, err := search.NewFilterSet(listing.Schema(), search.AtMost("price", 17000))
	require.NoError(t, err)
	res = c.Filter(ctx, "", fs)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "2", res.Matches[0].ID)
}

func TestCatalog_FailedReloadKeepsCollection(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{listings: stock}
	c := newCatalog(t, src)
	require.NoError(t, c.Reload(ctx))

	src.set(nil, errors.New("disk on fire"))
	require.Error(t, c.Reload(ctx))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Search(ctx, "toyota").Total)
}

func TestCatalog_ReloadRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{listings: stock}
	c := newCatalog(t, src)
	require.NoError(t, c.Reload(ctx))

	src.set(stock[:1], nil)
	require.NoError(t, c.Reload(ctx))

	assert.Zero(t, c.Search(ctx, "toyota").Total)
	_, ok := c.Get("2")
	assert.False(t, ok)
}

func TestCatalog_Poll(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	src := &stubSource{listings: stock}
	c := newCatalog(t, src, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Poll(ctx, time.Minute)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return c.Len() == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCatalog_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.yaml")
	write := func(content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("listings:\n  - id: \"1\"\n    make: Honda\n")

	c := newCatalog(t, listing.FileSource{Path: path})
	require.NoError(t, c.Reload(context.Background()))
	require.Equal(t, 1, c.Len())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Watch(ctx, path, 20*time.Millisecond) }()

	// The watcher registers asynchronously; keep rewriting until it notices.
	assert.Eventually(t, func() bool {
		write("listings:\n  - id: \"1\"\n    make: Honda\n  - id: \"2\"\n    make: Toyota\n")
		return c.Len() == 2
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, 1, c.Search(context.Background(), "toyota").Total)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	cancel()
	require.NoError(t, <-errc)
}

func TestCatalog_WatchMissingDirectory(t *testing.T) {
	c := newCatalog(t, &stubSource{})
	err := c.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "listings.yaml"), time.Millisecond)
	assert.Error(t, err)
}
