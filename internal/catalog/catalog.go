// Package catalog describes the shop: services, barbers, opening hours and
// the knowledge documents the retriever indexes.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"barberline/pkg/model"
	"barberline/pkg/sanitizer"

	"github.com/BurntSushi/toml"
)

//go:embed default_catalog.toml
var defaultCatalog string

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

type Hours struct {
	Open  string   `toml:"open" validate:"required,datetime=15:04"`
	Close string   `toml:"close" validate:"required,datetime=15:04"`
	Days  []string `toml:"days" validate:"required,min=1,dive,oneof=sun mon tue wed thu fri sat"`
}

type Catalog struct {
	ShopName  string                    `toml:"shop_name" validate:"required"`
	Hours     Hours                     `toml:"hours"`
	Services  []model.Service           `toml:"services" validate:"required,min=1,dive"`
	Barbers   []model.Barber            `toml:"barbers" validate:"required,min=1,dive"`
	Knowledge []model.KnowledgeDocument `toml:"knowledge"`
}

// Load reads a catalog from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	var cat Catalog
	if path == "" {
		if _, err := toml.Decode(defaultCatalog, &cat); err != nil {
			return nil, fmt.Errorf("failed to decode built-in catalog: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		if _, err := toml.Decode(string(data), &cat); err != nil {
			return nil, fmt.Errorf("failed to decode catalog %s: %w", path, err)
		}
	}

	for i := range cat.Services {
		cat.Services[i].Aliases = sanitizer.NormalizeAliases(cat.Services[i].Aliases)
	}
	for i := range cat.Barbers {
		cat.Barbers[i].Name = sanitizer.TrimAndNormalize(cat.Barbers[i].Name)
	}
	return &cat, nil
}

// Default returns the built-in catalog. It panics if the embedded file is broken.
func Default() *Catalog {
	cat, err := Load("")
	if err != nil {
		panic(err)
	}
	return cat
}

func (c *Catalog) Service(id string) (model.Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}

func (c *Catalog) Barber(id string) (model.Barber, bool) {
	for _, b := range c.Barbers {
		if b.ID == id {
			return b, true
		}
	}
	return model.Barber{}, false
}

// QualifiedBarbers lists active barbers offering serviceID, in catalog order.
func (c *Catalog) QualifiedBarbers(serviceID string) []model.Barber {
	var out []model.Barber
	for _, b := range c.Barbers {
		if b.Active && b.Offers(serviceID) {
			out = append(out, b)
		}
	}
	return out
}

func (c *Catalog) ActiveBarbers() []model.Barber {
	var out []model.Barber
	for _, b := range c.Barbers {
		if b.Active {
			out = append(out, b)
		}
	}
	return out
}

// ServiceNames is the spoken list "Haircut, Beard Trim, ... and Color Touch-up".
func (c *Catalog) ServiceNames() string {
	names := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		names = append(names, s.Name)
	}
	if len(names) <= 1 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// OpenDays returns the weekdays the shop is open.
func (c *Catalog) OpenDays() []time.Weekday {
	days := make([]time.Weekday, 0, len(c.Hours.Days))
	for _, d := range c.Hours.Days {
		if wd, ok := weekdays[strings.ToLower(d)]; ok && !slices.Contains(days, wd) {
			days = append(days, wd)
		}
	}
	return days
}

// OpenClose returns the opening and closing clock times as minutes after midnight.
func (c *Catalog) OpenClose() (int, int, error) {
	open, err := time.Parse("15:04", c.Hours.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid opening time %q: %w", c.Hours.Open, err)
	}
	closing, err := time.Parse("15:04", c.Hours.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid closing time %q: %w", c.Hours.Close, err)
	}
	return open.Hour()*60 + open.Minute(), closing.Hour()*60 + closing.Minute(), nil
}
