package settings

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carenest/backend/internal/config"
	"github.com/carenest/backend/internal/models"
)

// DefaultCommissionPercent applies when neither an admin override nor an
// environment default is set.
var DefaultCommissionPercent = decimal.NewFromInt(10)

// Commission sources reported alongside a resolved default percentage.
const (
	SourceSetting  = "setting"
	SourceEnv      = "env"
	SourceFallback = "fallback"
)

var overrideKeys = []string{
	models.SettingRazorpayKeyID,
	models.SettingRazorpayKeySecret,
	models.SettingRazorpayEnabled,
	models.SettingCommissionDefault,
}

// Store reads admin overrides. Missing keys are absent from the returned map.
type Store interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
}

// Resolver layers stored admin overrides over environment defaults.
type Resolver struct {
	store  Store
	env    *config.Config
	logger *slog.Logger
}

func NewResolver(store Store, env *config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, env: env, logger: logger}
}

// Snapshot loads the overrides once. A store failure degrades to environment defaults.
func (r *Resolver) Snapshot(ctx context.Context) *Snapshot {
	s := &Snapshot{env: r.env, logger: r.logger}
	if r.store == nil {
		return s
	}
	vals, err := r.store.GetMany(ctx, overrideKeys...)
	if err != nil {
		r.logger.Warn("settings lookup failed, using environment defaults", "error", err)
		return s
	}
	s.overrides = vals
	return s
}

// Snapshot is the resolved view of settings for one operation.
type Snapshot struct {
	overrides map[string]string
	env       *config.Config
	logger    *slog.Logger
}

// GatewaySettings is the resolved gateway credential set.
type GatewaySettings struct {
	KeyID     string
	KeySecret string
	Enabled   bool
}

// Configured reports whether the gateway may be called.
func (g GatewaySettings) Configured() bool {
	return g.Enabled && g.KeyID != "" && g.KeySecret != ""
}

func (s *Snapshot) override(key string) (string, bool) {
	v, ok := s.overrides[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (s *Snapshot) Gateway() GatewaySettings {
	var g GatewaySettings
	if s.env != nil {
		g = GatewaySettings{KeyID: s.env.Razorpay.KeyID, KeySecret: s.env.Razorpay.KeySecret, Enabled: s.env.Razorpay.Enabled}
	}
	if v, ok := s.override(models.SettingRazorpayKeyID); ok {
		g.KeyID = v
	}
	if v, ok := s.override(models.SettingRazorpayKeySecret); ok {
		g.KeySecret = v
	}
	if v, ok := s.override(models.SettingRazorpayEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			g.Enabled = b
		} else {
			s.logger.Warn("ignoring malformed setting", "key", models.SettingRazorpayEnabled, "value", v)
		}
	}
	return g
}

// CommissionPercent returns the global default commission and where it came from.
func (s *Snapshot) CommissionPercent() (decimal.Decimal, string) {
	if v, ok := s.override(models.SettingCommissionDefault); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			return d, SourceSetting
		}
		s.logger.Warn("ignoring malformed setting", "key", models.SettingCommissionDefault, "value", v)
	}
	if s.env != nil && strings.TrimSpace(s.env.DefaultCommissionPercent) != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(s.env.DefaultCommissionPercent)); err == nil {
			return d, SourceEnv
		}
		s.logger.Warn("ignoring malformed DEFAULT_COMMISSION_PERCENT", "value", s.env.DefaultCommissionPercent)
	}
	return DefaultCommissionPercent, SourceFallback
}
