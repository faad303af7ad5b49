package preferences

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mlcomp/mlboard/pkg/filter"
	"github.com/mlcomp/mlboard/pkg/storage"
)

// Preference keys.
const (
	KeySidePanelOpen = "sidePanelOpen"
	KeyQueryString   = "queryString"
	KeyStatusFilter  = "statusFilter"
)

// Preferences are the persisted board settings of the user.
type Preferences struct {
	SidePanelOpen bool     `json:"sidePanelOpen" yaml:"side_panel_open"`
	QueryString   string   `json:"queryString" yaml:"query_string"`
	StatusFilter  []string `json:"statusFilter" yaml:"status_filter"`
}

// Defaults returns the preferences used for keys that were never saved.
func Defaults() Preferences {
	return Preferences{
		SidePanelOpen: true,
		QueryString:   "",
		StatusFilter: []string{
			storage.StateActive.String(),
			storage.StateError.String(),
			storage.StateSuccess.String(),
		},
	}
}

// StatusKey returns the canonical status filter key of the preferences.
func (p Preferences) StatusKey() string {
	return filter.JoinStatuses(p.StatusFilter)
}

// Validate checks that every status name is a known state.
func (p Preferences) Validate() error {
	for _, s := range p.StatusFilter {
		if _, err := storage.ParseState(s); err != nil {
			return fmt.Errorf("statusFilter: %w", err)
		}
	}

	return nil
}

// Load reads the preferences from store, falling back to the default of
// every key that is not set.
func Load(ctx context.Context, s Store) (Preferences, error) {
	def := Defaults()

	var (
		p   Preferences
		err error
	)

	if p.SidePanelOpen, err = getOr(ctx, s, KeySidePanelOpen, def.SidePanelOpen); err != nil {
		return def, err
	}

	if p.QueryString, err = getOr(ctx, s, KeyQueryString, def.QueryString); err != nil {
		return def, err
	}

	if p.StatusFilter, err = getOr(ctx, s, KeyStatusFilter, def.StatusFilter); err != nil {
		return def, err
	}

	if p.StatusFilter == nil {
		p.StatusFilter = []string{}
	}

	return p, nil
}

// Save writes every preference to store.
func Save(ctx context.Context, s Store, p Preferences) error {
	status := slices.Clone(p.StatusFilter)
	if status == nil {
		status = []string{}
	}

	values := []struct {
		key   string
		value any
	}{
		{KeySidePanelOpen, p.SidePanelOpen},
		{KeyQueryString, p.QueryString},
		{KeyStatusFilter, status},
	}

	for _, v := range values {
		if err := s.Set(ctx, v.key, v.value); err != nil {
			return err
		}
	}

	return nil
}

// getOr reads key, returning def when it is not set.
func getOr[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	var v T

	err := s.Get(ctx, key, &v)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}

	if err != nil {
		return def, err
	}

	return v, nil
}
