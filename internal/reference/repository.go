package reference

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/internal/models"
)

// Repository handles reference data lookups (countries, cities, categories).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reference repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Countries returns all countries ordered by name.
func (r *Repository) Countries(ctx context.Context) ([]models.Country, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code FROM countries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CitiesByCountry returns cities for a country ordered by name.
func (r *Repository) CitiesByCountry(ctx context.Context, countryID int64) ([]models.City, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, country_id, name FROM cities WHERE country_id = $1 ORDER BY name`, countryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.CountryID, &c.Name); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Categories returns categories for a kind (volunteer or organization).
func (r *Repository) Categories(ctx context.Context, kind string) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, name FROM categories WHERE kind = $1 ORDER BY name`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
