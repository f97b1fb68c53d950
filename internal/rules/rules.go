// Package rules loads the versioned alias and correction table that the
// resolver and aggregator apply. The table is data, not code: each entry
// records a specific upstream reporting anomaly, and new anomalies are added
// by editing rules.yaml or pointing RULES_FILE at an override.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

//go:embed rules.yaml
var defaultRules []byte

// File is the on-disk rules document.
type File struct {
	Version string        `yaml:"version" validate:"required"`
	US      UniverseRules `yaml:"us"`
	World   UniverseRules `yaml:"world"`
}

// UniverseRules holds the rules for one entity universe.
type UniverseRules struct {
	Fixups          []FixupRule          `yaml:"fixups" validate:"dive"`
	Vessels         []VesselRule         `yaml:"vessels" validate:"dive"`
	Exceptions      map[string]string    `yaml:"exceptions" validate:"dive,required"`
	Renames         map[string][]string  `yaml:"renames" validate:"dive,dive,required"`
	Corrections     []CorrectionRule     `yaml:"corrections" validate:"dive"`
	Injections      []InjectionRule      `yaml:"injections" validate:"dive"`
	DailyExceptions []DailyExceptionRule `yaml:"daily_exceptions" validate:"dive"`
}

type FixupRule struct {
	Date     string   `yaml:"date" validate:"required,datetime=2006-01-02"`
	Contains []string `yaml:"contains" validate:"required,min=1,dive,required"`
	Target   string   `yaml:"target" validate:"required"`
}

type VesselRule struct {
	Name string `yaml:"name" validate:"required"`
	Key  string `yaml:"key" validate:"required"`
}

type CorrectionRule struct {
	Date                  string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Entity                string `yaml:"entity" validate:"required"`
	Confirmed             *int64 `yaml:"confirmed" validate:"required_without_all=Deaths Recovered,omitempty,gte=0"`
	Deaths                *int64 `yaml:"deaths" validate:"omitempty,gte=0"`
	Recovered             *int64 `yaml:"recovered" validate:"omitempty,gte=0"`
	MaxChangeFromPrevious *int64 `yaml:"max_change_from_previous" validate:"omitempty,gt=0"`
	Source                string `yaml:"source"`
}

type InjectionRule struct {
	Date      string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Entity    string `yaml:"entity" validate:"required"`
	Confirmed int64  `yaml:"confirmed" validate:"gte=0"`
	Deaths    int64  `yaml:"deaths" validate:"gte=0"`
	Recovered int64  `yaml:"recovered" validate:"gte=0"`
}

type DailyExceptionRule struct {
	Date   string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Entity string `yaml:"entity"`
}

// Set is a compiled rules table for one universe.
type Set struct {
	Version         string
	Resolver        domain.ResolverRules
	Corrections     *domain.CorrectionRegistry
	Injections      []domain.Injection
	DailyExceptions domain.DailyExceptions
}

var validate = validator.New()

// Default returns the embedded rules table.
func Default() (*File, error) {
	return Parse(defaultRules)
}

// LoadFile reads and validates a rules table from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Load returns the table at path, or the embedded default when path is empty.
func Load(path string) (*File, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes and validates a rules document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	return &f, nil
}

// Compile builds the domain rules for universe u.
func (f *File) Compile(u domain.Universe) (Set, error) {
	var ur UniverseRules
	switch u {
	case domain.UniverseUS:
		ur = f.US
	case domain.UniverseWorld:
		ur = f.World
	default:
		return Set{}, fmt.Errorf("compile rules: unknown universe %q", u)
	}

	set := Set{
		Version: f.Version,
		Resolver: domain.ResolverRules{
			Exceptions: ur.Exceptions,
			Renames:    make(map[string]string),
		},
	}

	for key, aliases := range ur.Renames {
		for _, alias := range aliases {
			set.Resolver.Renames[alias] = key
		}
	}
	for _, v := range ur.Vessels {
		set.Resolver.Vessels = append(set.Resolver.Vessels, domain.Vessel{Name: v.Name, Key: v.Key})
	}
	for _, fx := range ur.Fixups {
		d, err := parseDate(fx.Date)
		if err != nil {
			return Set{}, err
		}
		set.Resolver.Fixups = append(set.Resolver.Fixups, domain.Fixup{Date: d, Contains: fx.Contains, Target: fx.Target})
	}

	corrections := make([]domain.Correction, 0, len(ur.Corrections))
	for _, c := range ur.Corrections {
		d, err := parseDate(c.Date)
		if err != nil {
			return Set{}, err
		}
		corrections = append(corrections, domain.Correction{
			Date:                  d,
			Entity:                c.Entity,
			Confirmed:             c.Confirmed,
			Deaths:                c.Deaths,
			Recovered:             c.Recovered,
			MaxChangeFromPrevious: c.MaxChangeFromPrevious,
		})
	}
	set.Corrections = domain.NewCorrectionRegistry(corrections)

	for _, in := range ur.Injections {
		d, err := parseDate(in.Date)
		if err != nil {
			return Set{}, err
		}
		set.Injections = append(set.Injections, domain.Injection{
			Date:      d,
			Entity:    strings.ToLower(strings.TrimSpace(in.Entity)),
			Confirmed: in.Confirmed,
			Deaths:    in.Deaths,
			Recovered: in.Recovered,
		})
	}
	for _, ex := range ur.DailyExceptions {
		d, err := parseDate(ex.Date)
		if err != nil {
			return Set{}, err
		}
		set.DailyExceptions = append(set.DailyExceptions, domain.DailyException{Date: d, Entity: ex.Entity})
	}

	return set, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("rules date %q: %w", s, err)
	}
	return d, nil
}
