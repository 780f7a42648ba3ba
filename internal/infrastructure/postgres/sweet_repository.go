package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

// NUMERIC travels as text so no precision is lost on either side.
const sweetColumns = `id::text, name, category, price::text, quantity::text, quantity_unit, image, created_at, updated_at`

type SweetRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSweetRepository(pool *pgxpool.Pool) *SweetRepository {
	return &SweetRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SweetRepository) Insert(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	now := r.now()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sweets (id, name, category, price, quantity, quantity_unit, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $8)
		RETURNING `+sweetColumns,
		uuid.NewString(), s.Name, s.Category, s.Price.String(), s.Quantity.String(), string(s.QuantityUnit), s.Image, now,
	)
	created, err := scanSweet(row)
	if err != nil {
		return nil, r.mapErr("insert", err)
	}
	return created, nil
}

func (r *SweetRepository) Get(ctx context.Context, id string) (*domain.Sweet, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	s, err := scanSweet(r.pool.QueryRow(ctx, `SELECT `+sweetColumns+` FROM sweets WHERE id = $1`, id))
	if err != nil {
		return nil, r.mapErr("get", err)
	}
	return s, nil
}

func (r *SweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	return r.Search(ctx, domain.Filter{})
}

func (r *SweetRepository) Search(ctx context.Context, f domain.Filter) ([]*domain.Sweet, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Name != "" {
		where = append(where, "strpos(lower(name), lower("+arg(f.Name)+")) > 0")
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.MinPrice != nil {
		where = append(where, "price >= "+arg(f.MinPrice.String())+"::numeric")
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= "+arg(f.MaxPrice.String())+"::numeric")
	}

	query := `SELECT ` + sweetColumns + ` FROM sweets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapErr("search", err)
	}
	defer rows.Close()

	out := make([]*domain.Sweet, 0)
	for rows.Next() {
		s, err := scanSweet(rows)
		if err != nil {
			return nil, r.mapErr("search", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapErr("search", err)
	}
	return out, nil
}

func (r *SweetRepository) Update(ctx context.Context, id string, p domain.Patch, g domain.Guard) (*domain.Sweet, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	var unit *string
	if p.QuantityUnit != nil {
		u := string(*p.QuantityUnit)
		unit = &u
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE sweets SET
			name          = COALESCE($2, name),
			category      = COALESCE($3, category),
			price         = COALESCE($4::numeric, price),
			quantity      = COALESCE($5::numeric, quantity),
			quantity_unit = COALESCE($6, quantity_unit),
			image         = COALESCE($7, image),
			updated_at    = $8
		WHERE id = $1
		  AND ($9::text IS NULL OR quantity_unit = $9::text)
		  AND ($10::numeric IS NULL OR quantity = $10::numeric)
		RETURNING `+sweetColumns,
		id, p.Name, p.Category, decimalArg(p.Price), decimalArg(p.Quantity), unit, p.Image, r.now(),
		g.UnitArg(), decimalArg(g.Quantity),
	)
	s, err := scanSweet(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.mapErr("update", err)
	}
	return nil, r.refusal(ctx, id)
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM sweets WHERE id = $1`, id)
	if err != nil {
		return r.mapErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementIfAvailable is one guarded UPDATE; the row lock serialises concurrent buyers.
func (r *SweetRepository) DecrementIfAvailable(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	g := domain.Guard{Unit: unit}
	row := r.pool.QueryRow(ctx, `
		UPDATE sweets SET quantity = quantity - $2::numeric, updated_at = $3
		WHERE id = $1 AND quantity >= $2::numeric
		  AND ($4::text IS NULL OR quantity_unit = $4::text)
		RETURNING `+sweetColumns,
		id, qty.String(), r.now(), g.UnitArg(),
	)
	s, err := scanSweet(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.mapErr("decrement", err)
	}

	// refused: report what is there now
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Holds(current) {
		return nil, domain.ErrConcurrentChange
	}
	return nil, domain.StockError(current.Quantity, current.QuantityUnit)
}

func (r *SweetRepository) Increment(ctx context.Context, id string, qty decimal.Decimal, unit domain.Unit) (*domain.Sweet, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	g := domain.Guard{Unit: unit}
	row := r.pool.QueryRow(ctx, `
		UPDATE sweets SET quantity = quantity + $2::numeric, updated_at = $3
		WHERE id = $1
		  AND ($4::text IS NULL OR quantity_unit = $4::text)
		RETURNING `+sweetColumns,
		id, qty.String(), r.now(), g.UnitArg(),
	)
	s, err := scanSweet(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.mapErr("increment", err)
	}
	return nil, r.refusal(ctx, id)
}

// refusal explains a guarded write that matched no row.
func (r *SweetRepository) refusal(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrConcurrentChange
}

func (r *SweetRepository) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case pgCode(err) == codeUniqueViolation:
		return domain.ErrDuplicateName
	case pgCode(err) == codeInvalidText:
		return domain.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domain.Unavailable(fmt.Errorf("postgres: %s sweet: %w", op, err))
	}
}

func scanSweet(row pgx.Row) (*domain.Sweet, error) {
	var (
		s               domain.Sweet
		price, quantity string
		unit            string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &price, &quantity, &unit, &s.Image, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if s.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("postgres: price %q: %w", price, err)
	}
	if s.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("postgres: quantity %q: %w", quantity, err)
	}
	s.QuantityUnit = domain.Unit(unit)
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	return &s, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
