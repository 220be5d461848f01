// Package seed loads a day of sites and roster from a YAML file and writes
// it to the store, replacing whatever the day held before.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// Day is the YAML layout of a seed file:
//
//	date: 2026-03-02
//	timezone: Asia/Tokyo
//	roster:
//	  - name: 長田
//	    contact: nagata@example.com
//	sites:
//	  - name: Harbor Tower
//	    counterparty: Acme Builders
//	    address: 1-2-3 Minato
//	    starts_at: "09:00"
//	    required_slots: 4
//	    workers: [長田]
type Day struct {
	Date     string       `yaml:"date"`
	Timezone string       `yaml:"timezone"`
	Roster   []RosterItem `yaml:"roster"`
	Sites    []SiteItem   `yaml:"sites"`
}

// RosterItem is one worker of the day.
type RosterItem struct {
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`
}

// SiteItem is one site. Workers lists roster names seated in slot order.
type SiteItem struct {
	Name          string   `yaml:"name"`
	Counterparty  string   `yaml:"counterparty"`
	Address       string   `yaml:"address"`
	StartsAt      string   `yaml:"starts_at"` // HH:MM in Timezone
	RequiredSlots int      `yaml:"required_slots"`
	Notes         string   `yaml:"notes"`
	Workers       []string `yaml:"workers"`
}

// ErrInvalid wraps every validation problem found in a seed file.
var ErrInvalid = errors.New("invalid seed file")

// Parse decodes a seed file. Unknown keys are rejected.
func Parse(r io.Reader) (Day, error) {
	var d Day
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Day{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d, nil
}

// Build validates d and converts it to store records. Slot references are
// resolved to the new worker IDs; a worker may be seated at most once.
func Build(d Day) ([]models.Worker, []models.Site, error) {
	if err := dayscope.ValidateDate(d.Date); err != nil {
		return nil, nil, fmt.Errorf("%w: date %q: %v", ErrInvalid, d.Date, err)
	}
	loc := time.UTC
	if d.Timezone != "" {
		l, err := time.LoadLocation(d.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: timezone: %v", ErrInvalid, err)
		}
		loc = l
	}

	var problems []string
	ids := make(map[string]primitive.ObjectID, len(d.Roster))
	workers := make([]models.Worker, 0, len(d.Roster))
	for i, item := range d.Roster {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("roster[%d]: name is required", i))
			continue
		}
		key := text.Fold(name)
		if _, dup := ids[key]; dup {
			problems = append(problems, fmt.Sprintf("roster[%d]: duplicate name %q", i, name))
			continue
		}
		w := models.Worker{
			ID:      primitive.NewObjectID(),
			Name:    name,
			Contact: strings.TrimSpace(item.Contact),
			Status:  models.WorkerUnsent,
		}
		ids[key] = w.ID
		workers = append(workers, w)
	}

	seated := make(map[primitive.ObjectID]string)
	sites := make([]models.Site, 0, len(d.Sites))
	for i, item := range d.Sites {
		label := fmt.Sprintf("sites[%d] %q", i, item.Name)
		if strings.TrimSpace(item.Name) == "" {
			problems = append(problems, fmt.Sprintf("sites[%d]: name is required", i))
			continue
		}
		if item.RequiredSlots < 1 || item.RequiredSlots > models.MaxSlots {
			problems = append(problems, fmt.Sprintf("%s: required_slots must be 1..%d", label, models.MaxSlots))
			continue
		}
		startsAt, err := time.ParseInLocation(dayscope.DateLayout+" 15:04", d.Date+" "+strings.TrimSpace(item.StartsAt), loc)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: starts_at must be HH:MM", label))
			continue
		}
		if len(item.Workers) > item.RequiredSlots {
			problems = append(problems, fmt.Sprintf("%s: %d workers for %d slots", label, len(item.Workers), item.RequiredSlots))
			continue
		}

		slots := make([]*primitive.ObjectID, models.MaxSlots)
		for j, name := range item.Workers {
			id, ok := ids[text.Fold(strings.TrimSpace(name))]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: worker %q is not on the roster", label, name))
				continue
			}
			if at, dup := seated[id]; dup {
				problems = append(problems, fmt.Sprintf("%s: worker %q already seated at %s", label, name, at))
				continue
			}
			seated[id] = item.Name
			slots[j] = &id
		}

		sites = append(sites, models.Site{
			Name:             strings.TrimSpace(item.Name),
			CounterpartyName: strings.TrimSpace(item.Counterparty),
			Address:          strings.TrimSpace(item.Address),
			StartsAt:         startsAt.UTC(),
			RequiredSlots:    item.RequiredSlots,
			Notes:            item.Notes,
			Slots:            slots,
		})
	}

	if len(problems) > 0 {
		return nil, nil, fmt.Errorf("%w:\n  %s", ErrInvalid, strings.Join(problems, "\n  "))
	}
	return workers, sites, nil
}

// WorkerWriter replaces a day's roster.
type WorkerWriter interface {
	ReplaceDay(ctx context.Context, date string, workers []models.Worker) ([]models.Worker, error)
}

// SiteWriter replaces a day's sites.
type SiteWriter interface {
	ReplaceDay(ctx context.Context, date string, sites []models.Site) ([]models.Site, error)
}

// Result reports what Apply wrote.
type Result struct {
	Date    string
	Workers int
	Sites   int
}

// Apply writes d through runTx so the roster and sites are replaced together.
func Apply(ctx context.Context, d Day, workers WorkerWriter, sites SiteWriter,
	runTx func(ctx context.Context, fn func(ctx context.Context) error) error) (Result, error) {
	ws, ss, err := Build(d)
	if err != nil {
		return Result{}, err
	}
	res := Result{Date: d.Date}
	err = runTx(ctx, func(ctx context.Context) error {
		savedW, err := workers.ReplaceDay(ctx, d.Date, ws)
		if err != nil {
			return fmt.Errorf("replace roster: %w", err)
		}
		savedS, err := sites.ReplaceDay(ctx, d.Date, ss)
		if err != nil {
			return fmt.Errorf("replace sites: %w", err)
		}
		res.Workers, res.Sites = len(savedW), len(savedS)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
