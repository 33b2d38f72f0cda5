package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type planDefinition struct {
	Name    string         `mapstructure:"name" validate:"required"`
	Credits int            `mapstructure:"credits" validate:"gte=-1"`
	Limits  map[string]int `mapstructure:"limits" validate:"dive,keys,oneof=playbooks icps enrolled_accounts accounts users,endkeys,gte=-1"`
}

type fileConfig struct {
	Plans map[string]planDefinition `mapstructure:"plans" validate:"dive,keys,oneof=free starter growth professional scale enterprise,endkeys"`
}

// FileRegistry overlays plans.yml on the built-in table and reloads it on change.
type FileRegistry struct {
	current  atomic.Value // map[domain.Type]domain.Plan
	log      *zap.Logger
	validate *validator.Validate
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func Provide(p Params) (domain.Registry, error) {
	return NewFileRegistry(p.Config.PlansFile, p.Log)
}

// NewFileRegistry reads plans.yml from path, or from the standard locations when
// path is empty. A missing file leaves the built-in table in effect.
func NewFileRegistry(path string, log *zap.Logger) (*FileRegistry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &FileRegistry{
		log:      log.Named("plan.registry"),
		validate: validator.New(),
	}

	v := viper.New()
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/gapline")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read plans: %v", config.ErrConfiguration, err)
		}
		r.current.Store(domain.DefaultPlans())
		r.log.Info("no plans file found, using built-in plans")
		return r, nil
	}

	plans, err := r.load(v)
	if err != nil {
		return nil, err
	}
	r.current.Store(plans)
	r.log.Info("plans loaded", zap.String("file", v.ConfigFileUsed()), zap.Int("plans", len(plans)))

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := r.load(v)
		if err != nil {
			r.log.Warn("invalid plans file ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		r.current.Store(updated)
		r.log.Info("plans reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return r, nil
}

func (r *FileRegistry) Plan(planType domain.Type) (domain.Plan, error) {
	return lookup(r.current.Load().(map[domain.Type]domain.Plan), planType)
}

func (r *FileRegistry) load(v *viper.Viper) (map[domain.Type]domain.Plan, error) {
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode plans: %v", config.ErrConfiguration, err)
	}
	if err := r.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid plans: %v", config.ErrConfiguration, err)
	}
	return merge(domain.DefaultPlans(), cfg), nil
}

// merge overlays file definitions onto base. Features a definition omits keep
// the built-in cap for that plan; the free plan is never overridden.
func merge(base map[domain.Type]domain.Plan, cfg fileConfig) map[domain.Type]domain.Plan {
	for key, def := range cfg.Plans {
		planType := domain.Type(strings.ToLower(key))
		if planType == domain.TypeFree {
			continue
		}
		p := base[planType]
		p.Type = planType
		p.Name = def.Name
		p.CreditAllowance = def.Credits
		limits := p.Limits.Clone()
		for feature, limit := range def.Limits {
			limits[domain.FeatureKey(feature)] = limit
		}
		p.Limits = limits
		base[planType] = p
	}
	base[domain.TypeFree] = domain.FreePlan()
	return base
}
