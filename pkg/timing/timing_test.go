package timing_test

import (
	"testing"
	"time"

	"github.com/dukex/funnels/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinutes_ScalesByUnit(t *testing.T) {
	t.Parallel()

	factors := map[timing.Unit]int{
		timing.UnitMinutes: 1,
		timing.UnitHours:   60,
		timing.UnitDays:    1440,
	}

	for unit, factor := range factors {
		t.Run(string(unit), func(t *testing.T) {
			t.Parallel()

			previous := -1
			for value := 0; value <= 500; value++ {
				minutes := timing.ToMinutes(value, unit)
				assert.Equal(t, value*factor, minutes)
				assert.Greater(t, minutes, previous)

				previous = minutes
			}
		})
	}
}

func TestToMinutes_ZeroIsImmediateForEveryUnit(t *testing.T) {
	t.Parallel()

	for _, unit := range timing.Units {
		minutes := timing.ToMinutes(0, unit)

		assert.Equal(t, 0, minutes)
		assert.Equal(t, "Immediate", timing.Label(minutes))
		assert.Equal(t, "At start", timing.CumulativeLabel(minutes))
	}
}

func TestParseUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    timing.Unit
		wantErr bool
	}{
		{raw: "minutes", want: timing.UnitMinutes},
		{raw: "hours", want: timing.UnitHours},
		{raw: "days", want: timing.UnitDays},
		{raw: " days ", want: timing.UnitDays},
		{raw: "weeks", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "Days", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			unit, err := timing.ParseUnit(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, timing.ErrInvalidUnit)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, unit)
		})
	}
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	direction, err := timing.ParseDirection("before")
	require.NoError(t, err)
	assert.Equal(t, timing.Before, direction)

	_, err = timing.ParseDirection("during")
	require.ErrorIs(t, err, timing.ErrInvalidDirection)
}

func TestOffset_SignedRoundTrip(t *testing.T) {
	t.Parallel()

	for _, unit := range timing.Units {
		for _, direction := range []timing.Direction{timing.Before, timing.After} {
			for _, value := range []int{1, 2, 7, 90, 10000} {
				original := timing.Offset{Value: value, Unit: unit, Direction: direction}

				restored := timing.OffsetFromSigned(original.Signed(), unit)

				assert.Equal(t, original, restored)
			}
		}
	}

	zero := timing.OffsetFromSigned(0, timing.UnitDays)
	assert.Equal(t, 0, zero.Value)
	assert.Equal(t, timing.After, zero.Direction)
}

func TestOffset_Apply(t *testing.T) {
	t.Parallel()

	event := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset timing.Offset
		want   time.Time
	}{
		{
			name:   "two days before",
			offset: timing.Offset{Value: 2, Unit: timing.UnitDays, Direction: timing.Before},
			want:   time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "three hours after",
			offset: timing.Offset{Value: 3, Unit: timing.UnitHours, Direction: timing.After},
			want:   time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			name:   "at event",
			offset: timing.Offset{Unit: timing.UnitMinutes, Direction: timing.After},
			want:   event,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.offset.Apply(event))
		})
	}
}

func TestOffset_Describe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "at event", timing.Offset{Unit: timing.UnitDays, Direction: timing.After}.Describe())
	assert.Equal(t, "2 days before", timing.OffsetFromSigned(-2, timing.UnitDays).Describe())
	assert.Equal(t, "30 minutes after", timing.OffsetFromSigned(30, timing.UnitMinutes).Describe())
}

func TestLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minutes int
		want    string
	}{
		{minutes: 0, want: "Immediate"},
		{minutes: 45, want: "45m"},
		{minutes: 60, want: "1h"},
		{minutes: 90, want: "1h 30m"},
		{minutes: 1440, want: "1d"},
		{minutes: 1500, want: "1d 1h"},
		{minutes: 3060, want: "2d 3h"},
		{minutes: 1441, want: "1d"},
		{minutes: -2880, want: "-2d"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, timing.Label(tt.minutes))
		})
	}
}

func TestCumulativeLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "At start", timing.CumulativeLabel(0))
	assert.Equal(t, "+2d 3h", timing.CumulativeLabel(3060))
	assert.Equal(t, "+1h 30m", timing.CumulativeLabel(90))
	assert.Equal(t, "-2d", timing.CumulativeLabel(-2880))
}

func TestUntil(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		scheduled time.Time
		want      string
	}{
		{name: "past", scheduled: now.Add(-time.Hour), want: "Due now"},
		{name: "exactly now", scheduled: now, want: "Due now"},
		{name: "minutes", scheduled: now.Add(42 * time.Minute), want: "42m"},
		{name: "hours", scheduled: now.Add(5*time.Hour + 20*time.Minute), want: "5h"},
		{name: "days", scheduled: now.Add(50 * time.Hour), want: "2d 2h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, timing.Until(now, tt.scheduled))
		})
	}
}
