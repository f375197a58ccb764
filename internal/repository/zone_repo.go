package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenest/backend/internal/models"
)

const zoneColumns = `id, name, city, pincodes, commission_percent::float8, is_active, created_at, updated_at`

type ZoneRepo struct {
	pool     *pgxpool.Pool
	geometry bool
}

// NewZoneRepo returns a zone repository. Call DetectGeometry once at startup
// to enable point containment lookups.
func NewZoneRepo(pool *pgxpool.Pool) *ZoneRepo {
	return &ZoneRepo{pool: pool}
}

// DetectGeometry probes for PostGIS and the zones.boundary column.
func (r *ZoneRepo) DetectGeometry(ctx context.Context) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT to_regproc('st_contains') IS NOT NULL
			AND EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'zones' AND column_name = 'boundary'
			)
	`).Scan(&ok)
	if err != nil {
		return false, err
	}
	r.geometry = ok
	return ok, nil
}

func (r *ZoneRepo) GeometryAvailable() bool {
	return r.geometry
}

func scanZone(row pgx.Row) (*models.Zone, error) {
	var z models.Zone
	err := row.Scan(&z.ID, &z.Name, &z.City, &z.Pincodes, &z.CommissionPercent, &z.IsActive, &z.CreatedAt, &z.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// ByPoint returns the active zone whose boundary contains the point.
func (r *ZoneRepo) ByPoint(ctx context.Context, lat, lng float64) (*models.Zone, error) {
	if !r.geometry {
		return nil, ErrNotFound
	}
	return scanZone(r.pool.QueryRow(ctx, `
		SELECT `+zoneColumns+` FROM zones
		WHERE is_active AND boundary IS NOT NULL
			AND ST_Contains(boundary, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY updated_at DESC LIMIT 1
	`, lng, lat))
}

func (r *ZoneRepo) ByPincode(ctx context.Context, pincode string) (*models.Zone, error) {
	return scanZone(r.pool.QueryRow(ctx, `
		SELECT `+zoneColumns+` FROM zones
		WHERE is_active AND $1 = ANY(pincodes)
		ORDER BY updated_at DESC LIMIT 1
	`, pincode))
}

func (r *ZoneRepo) ByCity(ctx context.Context, city string) (*models.Zone, error) {
	return scanZone(r.pool.QueryRow(ctx, `
		SELECT `+zoneColumns+` FROM zones
		WHERE is_active AND lower(city) = lower($1)
		ORDER BY updated_at DESC LIMIT 1
	`, city))
}
