package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

type mapStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
	closed  bool
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	b, ok := m.data[key]
	if !ok {
		return nil, errMiss
	}
	return b, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mapStore) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("Embedder", func() {
	var (
		inner *testutils.MockEmbedder
		store *mapStore
		e     *Embedder
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		inner = testutils.NewMockEmbedder(4)
		store = newMapStore()
		e = newEmbedder(inner, store, Config{KeyPrefix: "clip"})
	})

	It("computes once and serves repeats from the cache", func() {
		first, err := e.Embed(ctx, "crane")
		Expect(err).NotTo(HaveOccurred())
		second, err := e.Embed(ctx, "crane")
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(inner.TextCalls()).To(Equal(1))
	})

	It("stores entries under the prefix with the default TTL", func() {
		_, err := e.Embed(ctx, "crane")
		Expect(err).NotTo(HaveOccurred())
		for k, ttl := range store.ttls {
			Expect(k).To(HavePrefix("snaps:emb:clip:"))
			Expect(ttl).To(Equal(DefaultTTL))
		}
	})

	It("falls back to the embedder when the cache read fails", func() {
		store.readErr = errors.New("connection refused")
		_, err := e.Embed(ctx, "crane")
		Expect(err).NotTo(HaveOccurred())
		_, err = e.Embed(ctx, "crane")
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.TextCalls()).To(Equal(2))
	})

	It("does not cache image embeddings", func() {
		_, err := e.EmbedImage(ctx, []byte{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.data).To(BeEmpty())
	})

	It("propagates embedder failures", func() {
		inner.Err = errors.New("down")
		_, err := e.Embed(ctx, "crane")
		Expect(err).To(MatchError("down"))
	})

	It("closes both the store and the embedder", func() {
		Expect(e.Close()).To(Succeed())
		Expect(store.closed).To(BeTrue())
	})
})

var _ = Describe("encode and decode", func() {
	It("rejects malformed payloads", func() {
		_, ok := decode([]byte{1, 2, 3})
		Expect(ok).To(BeFalse())
	})
})
