package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/variant"
)

// ErrNotFound indicates the requested cart could not be located or has
// expired.
var ErrNotFound = errors.New("cart not found")

// entry pairs a product tree with its expiry and the exclusive lock held
// around any mutation plus its recompute pass. The variant tree itself is
// not safe for concurrent access.
type entry struct {
	mu        sync.Mutex
	product   *variant.Product
	expiresAt time.Time
}

// Store keeps carts in process memory, keyed by generated id. Reads and
// writes against a cart both serialize on the cart's own lock; the store
// lock only guards the map.
type Store struct {
	mu    sync.RWMutex
	carts map[string]*entry

	TTL time.Duration
	Now func() time.Time
}

// NewStore constructs a store with the given cart lifetime.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		carts: make(map[string]*entry),
		TTL:   ttl,
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Put registers a product tree as a new cart and returns its id.
func (s *Store) Put(product *variant.Product) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[id] = &entry{
		product:   product,
		expiresAt: s.now().Add(s.ttl()),
	}
	return id
}

// With runs fn holding the cart's exclusive lock, refreshing the cart's
// expiry. Expired carts are evicted and reported as not found.
func (s *Store) With(id string, fn func(*variant.Product) error) error {
	s.mu.RLock()
	e := s.carts[id]
	s.mu.RUnlock()
	if e == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if e.expiresAt.Before(now) {
		s.mu.Lock()
		delete(s.carts, id)
		s.mu.Unlock()
		return ErrNotFound
	}
	e.expiresAt = now.Add(s.ttl())
	return fn(e.product)
}

// Delete removes a cart.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
}

// Len reports the number of carts currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
