// Package timing converts funnel delays into durations, schedule instants and display labels.
package timing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
)

var (
	// ErrInvalidUnit indicates a delay unit outside minutes, hours and days.
	ErrInvalidUnit = errors.New("invalid delay unit")

	// ErrInvalidDirection indicates a delay direction other than before or after.
	ErrInvalidDirection = errors.New("invalid delay direction")
)

type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// Units lists every supported delay unit, smallest first.
var Units = []Unit{UnitMinutes, UnitHours, UnitDays}

// ParseUnit validates a raw unit string.
func ParseUnit(raw string) (Unit, error) {
	unit := Unit(strings.TrimSpace(raw))
	if !unit.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, raw)
	}

	return unit, nil
}

func (u Unit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	default:
		return false
	}
}

func (u Unit) factor() int {
	switch u {
	case UnitDays:
		return MinutesPerDay
	case UnitHours:
		return MinutesPerHour
	default:
		return 1
	}
}

// ToMinutes scales value by the unit. Unknown units are treated as minutes;
// callers validate units at the boundary with ParseUnit.
func ToMinutes(value int, unit Unit) int {
	return value * unit.factor()
}

type Direction string

const (
	Before Direction = "before"
	After  Direction = "after"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case Before, After:
		return Direction(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}
}

// Offset is an unsigned magnitude with a unit and a direction relative to a reference instant.
type Offset struct {
	Value     int       `json:"value"`
	Unit      Unit      `json:"unit"`
	Direction Direction `json:"direction"`
}

// OffsetFromSigned rebuilds an offset from its stored form, where the sign carries the direction.
func OffsetFromSigned(signed int, unit Unit) Offset {
	if signed < 0 {
		return Offset{Value: -signed, Unit: unit, Direction: Before}
	}

	return Offset{Value: signed, Unit: unit, Direction: After}
}

// Signed is the storage form of the offset.
func (o Offset) Signed() int {
	if o.Direction == Before {
		return -o.Value
	}

	return o.Value
}

func (o Offset) Minutes() int {
	return ToMinutes(o.Value, o.Unit)
}

func (o Offset) SignedMinutes() int {
	if o.Direction == Before {
		return -o.Minutes()
	}

	return o.Minutes()
}

func (o Offset) Duration() time.Duration {
	return time.Duration(o.SignedMinutes()) * time.Minute
}

// Apply shifts ref by the offset.
func (o Offset) Apply(ref time.Time) time.Time {
	return ref.Add(o.Duration())
}

// Describe renders the offset relative to its event, e.g. "2 days before".
func (o Offset) Describe() string {
	if o.Value == 0 {
		return "at event"
	}

	return fmt.Sprintf("%d %s %s", o.Value, o.Unit, o.Direction)
}

// Label renders a minute count using the largest fitting unit plus the remainder of the next
// smaller one: 90 is "1h 30m", 1440 is "1d", 3060 is "2d 3h".
func Label(minutes int) string {
	if minutes == 0 {
		return "Immediate"
	}

	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}

	days := minutes / MinutesPerDay
	hours := (minutes % MinutesPerDay) / MinutesPerHour
	mins := minutes % MinutesPerHour

	var b strings.Builder

	b.WriteString(sign)

	switch {
	case days > 0:
		b.WriteString(strconv.Itoa(days) + "d")

		if hours > 0 {
			b.WriteString(" " + strconv.Itoa(hours) + "h")
		}
	case hours > 0:
		b.WriteString(strconv.Itoa(hours) + "h")

		if mins > 0 {
			b.WriteString(" " + strconv.Itoa(mins) + "m")
		}
	default:
		b.WriteString(strconv.Itoa(mins) + "m")
	}

	return b.String()
}

// CumulativeLabel renders a minute count measured from the funnel start.
func CumulativeLabel(minutes int) string {
	if minutes == 0 {
		return "At start"
	}

	label := Label(minutes)
	if minutes < 0 {
		return label
	}

	return "+" + label
}

// Until renders the time left before scheduled, as shown in the execution queue.
func Until(now, scheduled time.Time) string {
	diff := scheduled.Sub(now)
	if diff <= 0 {
		return "Due now"
	}

	hours := int(diff / time.Hour)
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(diff/time.Minute))
	}
}
