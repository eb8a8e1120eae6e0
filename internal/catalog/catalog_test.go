package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"barberline/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()

	assert.Equal(t, "Riverside Cuts", cat.ShopName)
	assert.Len(t, cat.Services, 6)
	assert.Len(t, cat.Barbers, 3)

	haircut, ok := cat.Service("HAIRCUT")
	require.True(t, ok)
	assert.Equal(t, 30, haircut.DurationMin)
	assert.Equal(t, "$25", haircut.PriceText())
	assert.Contains(t, haircut.Aliases, "style and cut")

	_, ok = cat.Service("PERM")
	assert.False(t, ok)
}

func TestQualifiedBarbers(t *testing.T) {
	cat := Default()

	tests := []struct {
		service string
		want    []string
	}{
		{service: "HAIRCUT", want: []string{"alex", "brook", "casey"}},
		{service: "COLOR", want: []string{"alex", "brook"}},
		{service: "PERM", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			var got []string
			for _, b := range cat.QualifiedBarbers(tt.service) {
				got = append(got, b.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceNames(t *testing.T) {
	cat := Default()
	assert.Equal(t,
		"Haircut, Beard Trim, Hot Towel Shave, Kids Haircut, Wash & Style and Color Touch-up",
		cat.ServiceNames())
}

func TestGrid(t *testing.T) {
	cat := Default()
	loc := time.UTC

	// Monday 2026-10-19 08:00, before opening.
	from := time.Date(2026, 10, 19, 8, 0, 0, 0, loc)
	slots, err := cat.Grid(from, 0, loc)
	require.NoError(t, err)

	// 09:00-17:00 is 16 half-hour blocks for each of 3 barbers.
	require.Len(t, slots, 48)
	for _, s := range slots {
		assert.Equal(t, model.SlotFree, s.State)
		assert.Equal(t, model.SlotBlockMinutes, s.DurationMin)
		assert.False(t, s.StartTime.Before(from))
	}
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, loc), slots[0].StartTime)
}

func TestGridSkipsClosedDaysAndPast(t *testing.T) {
	cat := Default()
	loc := time.UTC

	// Sunday 2026-10-18 is closed; look ahead one day to Monday.
	sunday := time.Date(2026, 10, 18, 12, 0, 0, 0, loc)
	slots, err := cat.Grid(sunday, 1, loc)
	require.NoError(t, err)
	assert.Len(t, slots, 48)
	for _, s := range slots {
		assert.Equal(t, time.Monday, s.StartTime.In(loc).Weekday())
	}

	// Monday mid-afternoon leaves only the blocks from 15:00 on.
	afternoon := time.Date(2026, 10, 19, 14, 45, 0, 0, loc)
	slots, err = cat.Grid(afternoon, 0, loc)
	require.NoError(t, err)
	assert.Len(t, slots, 4*3)
}

func TestGridLaysOutWholeLastDay(t *testing.T) {
	cat := Default()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Monday noon, one day ahead: the rest of Monday plus all of Tuesday.
	from := time.Date(2026, 10, 19, 12, 0, 0, 0, loc)
	slots, err := cat.Grid(from, 1, loc)
	require.NoError(t, err)
	require.Len(t, slots, (10+16)*3)

	last := slots[len(slots)-1].StartTime.In(loc)
	assert.Equal(t, time.Tuesday, last.Weekday())
	assert.Equal(t, 16, last.Hour())
	assert.Equal(t, 30, last.Minute())
}

func TestDocuments(t *testing.T) {
	cat := Default()
	docs := cat.Documents()

	byID := map[string]model.KnowledgeDocument{}
	for _, d := range docs {
		byID[d.ID] = d
	}

	haircut, ok := byID["service-haircut"]
	require.True(t, ok)
	assert.Contains(t, haircut.Text, "$25")
	assert.Contains(t, haircut.Text, "30 minutes")
	assert.Equal(t, "HAIRCUT", haircut.Metadata[model.MetaServiceID])

	hours, ok := byID["hours"]
	require.True(t, ok)
	assert.Contains(t, hours.Text, "09:00")
	assert.Contains(t, hours.Text, "Saturday")

	assert.Contains(t, byID["barbers"].Text, "Casey offers")
	assert.Contains(t, byID["policy-cancellation"].Text, "$10")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.toml")
	content := `
shop_name = "Test Shop"

[hours]
open = "10:00"
close = "12:00"
days = ["tue"]

[[services]]
id = "HAIRCUT"
name = "Haircut"
duration_min = 30
price_cents = 1000
description = "A cut."
aliases = ["  Hair-Cut  "]

[[barbers]]
id = "dana"
name = "  Dana "
active = true
services = ["HAIRCUT"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Shop", cat.ShopName)
	assert.Equal(t, "Dana", cat.Barbers[0].Name)
	assert.Equal(t, []time.Weekday{time.Tuesday}, cat.OpenDays())

	open, closing, err := cat.OpenClose()
	require.NoError(t, err)
	assert.Equal(t, 600, open)
	assert.Equal(t, 720, closing)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
