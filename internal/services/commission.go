package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/repository"
	"github.com/carenest/backend/internal/settings"
)

// Zone rule sources reported in a Resolution.
const (
	SourceZonePoint   = "zone_point"
	SourceZonePincode = "zone_pincode"
	SourceZoneCity    = "zone_city"
)

var hundred = decimal.NewFromInt(100)

// ZoneRepo is the minimal zone lookup interface for commission resolution.
type ZoneRepo interface {
	GeometryAvailable() bool
	ByPoint(ctx context.Context, lat, lng float64) (*models.Zone, error)
	ByPincode(ctx context.Context, pincode string) (*models.Zone, error)
	ByCity(ctx context.Context, city string) (*models.Zone, error)
}

// SettingsProvider yields the per-operation settings view.
type SettingsProvider interface {
	Snapshot(ctx context.Context) *settings.Snapshot
}

// Resolution is a commission percentage and the rule that produced it.
type Resolution struct {
	Percent decimal.Decimal
	Source  string
	ZoneID  *uuid.UUID
}

// CommissionResolver picks the commission percentage for a booking location.
// First match wins: containing zone, pincode zone, city zone, global default.
type CommissionResolver struct {
	Zones    ZoneRepo
	Settings SettingsProvider
	Logger   *slog.Logger
}

func NewCommissionResolver(zones ZoneRepo, settings SettingsProvider, logger *slog.Logger) *CommissionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommissionResolver{Zones: zones, Settings: settings, Logger: logger}
}

// Resolve never fails; lookup errors fall through to the next rule.
func (r *CommissionResolver) Resolve(ctx context.Context, loc models.Location) Resolution {
	if r.Zones != nil {
		if loc.Latitude != nil && loc.Longitude != nil && r.Zones.GeometryAvailable() {
			z, err := r.Zones.ByPoint(ctx, *loc.Latitude, *loc.Longitude)
			if res, ok := r.match(z, err, SourceZonePoint); ok {
				return res
			}
		}
		if loc.Pincode != "" {
			z, err := r.Zones.ByPincode(ctx, loc.Pincode)
			if res, ok := r.match(z, err, SourceZonePincode); ok {
				return res
			}
		}
		if loc.City != "" {
			z, err := r.Zones.ByCity(ctx, loc.City)
			if res, ok := r.match(z, err, SourceZoneCity); ok {
				return res
			}
		}
	}
	pct, src := r.Settings.Snapshot(ctx).CommissionPercent()
	return Resolution{Percent: pct, Source: src}
}

func (r *CommissionResolver) match(z *models.Zone, err error, source string) (Resolution, bool) {
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.Logger.Warn("zone lookup failed", "rule", source, "error", err)
		}
		return Resolution{}, false
	}
	if z == nil {
		return Resolution{}, false
	}
	id := z.ID
	return Resolution{Percent: decimal.NewFromFloat(z.CommissionPercent), Source: source, ZoneID: &id}, true
}

// Split divides amount (minor units) into the platform commission and the
// therapist's share. Commission is rounded half-up to a whole minor unit and
// the two parts always sum to amount.
func Split(amount int64, percent decimal.Decimal) (commission, therapist int64) {
	percent = clampPercent(percent)
	commission = decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
	return commission, amount - commission
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
