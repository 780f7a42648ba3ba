package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appsweet "github.com/Zhima-Mochi/sweetshop/internal/application/sweet"
	domsweet "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
	"github.com/Zhima-Mochi/sweetshop/internal/observability"
)

// Ledger is the slice of the sweet ledger the seeder writes through.
type Ledger interface {
	Create(ctx context.Context, in appsweet.CreateInput) (*domsweet.Sweet, error)
	Search(ctx context.Context, in appsweet.SearchInput) ([]*domsweet.Sweet, error)
	Update(ctx context.Context, in appsweet.UpdateInput) (*domsweet.Sweet, error)
}

type Report struct {
	Created       int
	Skipped       int
	ImagesUpdated int
}

type Seeder struct {
	ledger Ledger
	log    observability.Logger
}

func NewSeeder(ledger Ledger, log observability.Logger) *Seeder {
	if log == nil {
		log = observability.NopLogger()
	}
	return &Seeder{ledger: ledger, log: log.With(observability.F("component", "seeder"))}
}

// Run creates every entry that does not exist yet. Existing sweets are left
// alone except for their image, which is replaced when the entry carries one.
func (s *Seeder) Run(ctx context.Context, c *Catalog) (Report, error) {
	var rep Report
	for _, e := range c.Sweets {
		e.Name = strings.TrimSpace(e.Name)
		_, err := s.ledger.Create(ctx, appsweet.CreateInput{
			Name:         e.Name,
			Category:     e.Category,
			Price:        e.Price.Decimal,
			Quantity:     e.Quantity.Decimal,
			QuantityUnit: e.Unit,
			Image:        e.Image,
		})
		switch {
		case err == nil:
			rep.Created++
			s.log.Info("seed_created", observability.F("sweet_name", e.Name))
			continue
		case !errors.Is(err, domsweet.ErrDuplicateName):
			return rep, fmt.Errorf("seed: create %q: %w", e.Name, err)
		}

		rep.Skipped++
		if e.Image == "" {
			s.log.Info("seed_skipped", observability.F("sweet_name", e.Name))
			continue
		}
		existing, err := s.findByName(ctx, e.Name)
		if err != nil {
			return rep, err
		}
		image := e.Image
		if _, err := s.ledger.Update(ctx, appsweet.UpdateInput{ID: existing.ID, Image: &image}); err != nil {
			return rep, fmt.Errorf("seed: update image of %q: %w", e.Name, err)
		}
		rep.ImagesUpdated++
		s.log.Info("seed_image_updated", observability.F("sweet_name", e.Name))
	}
	return rep, nil
}

func (s *Seeder) findByName(ctx context.Context, name string) (*domsweet.Sweet, error) {
	matches, err := s.ledger.Search(ctx, appsweet.SearchInput{Name: name})
	if err != nil {
		return nil, fmt.Errorf("seed: find %q: %w", name, err)
	}
	for _, m := range matches {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("seed: find %q: %w", name, domsweet.ErrNotFound)
}
