package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

type sweetRecord struct {
	sweet *domain.Sweet
	seq   uint64
}

// SweetRepository keeps sweets in process memory. The mutex makes every
// conditional update atomic, the same guarantee the database stores give.
type SweetRepository struct {
	mu     sync.RWMutex
	sweets map[string]*sweetRecord
	names  map[string]string
	seq    uint64
	now    func() time.Time
}

func NewSweetRepository() *SweetRepository {
	return &SweetRepository{
		sweets: make(map[string]*sweetRecord),
		names:  make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *SweetRepository) Insert(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[s.Name]; taken {
		return nil, domain.ErrDuplicateName
	}

	stored := s.Clone()
	stored.ID = uuid.NewString()
	now := r.now()
	stored.CreatedAt, stored.UpdatedAt = now, now

	r.seq++
	r.sweets[stored.ID] = &sweetRecord{sweet: stored, seq: r.seq}
	r.names[stored.Name] = stored.ID
	return stored.Clone(), nil
}

func (r *SweetRepository) Get(ctx context.Context, id string) (*domain.Sweet, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.sweet.Clone(), nil
}

func (r *SweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	return r.Search(ctx, domain.Filter{})
}

func (r *SweetRepository) Search(ctx context.Context, f domain.Filter) ([]*domain.Sweet, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*sweetRecord, 0, len(r.sweets))
	for _, rec := range r.sweets {
		if f.Matches(rec.sweet) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	out := make([]*domain.Sweet, len(recs))
	for i, rec := range recs {
		out[i] = rec.sweet.Clone()
	}
	return out, nil
}

func (r *SweetRepository) Update(ctx context.Context, id string, p domain.Patch, g domain.Guard) (*domain.Sweet, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !g.Holds(rec.sweet) {
		return nil, domain.ErrConcurrentChange
	}
	if p.Name != nil && *p.Name != rec.sweet.Name {
		if _, taken := r.names[*p.Name]; taken {
			return nil, domain.ErrDuplicateName
		}
		delete(r.names, rec.sweet.Name)
		r.names[*p.Name] = id
	}

	next := rec.sweet.Clone()
	p.Apply(next)
	next.UpdatedAt = r.now()
	rec.sweet = next
	return next.Clone(), nil
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.names, rec.sweet.Name)
	delete(r.sweets, id)
	return nil
}

func (r *SweetRepository) DecrementIfAvailable(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !(domain.Guard{Unit: unit}).Holds(rec.sweet) {
		return nil, domain.ErrConcurrentChange
	}
	if rec.sweet.Quantity.LessThan(qty) {
		return nil, domain.StockError(rec.sweet.Quantity, rec.sweet.QuantityUnit)
	}

	next := rec.sweet.Clone()
	next.Quantity = next.Quantity.Sub(qty)
	next.UpdatedAt = r.now()
	rec.sweet = next
	return next.Clone(), nil
}

func (r *SweetRepository) Increment(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !(domain.Guard{Unit: unit}).Holds(rec.sweet) {
		return nil, domain.ErrConcurrentChange
	}

	next := rec.sweet.Clone()
	next.Quantity = next.Quantity.Add(qty)
	next.UpdatedAt = r.now()
	rec.sweet = next
	return next.Clone(), nil
}
