// internal/schedule/grid.go
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// The weekly grid spans Monday through Friday, 09:00 to 23:00, in
// 30-minute buckets. The final bucket of each day starts at 23:00, so a
// day holds 29 buckets and the grid 145 slots in total.
const (
	DayCount    = 5
	FirstHour   = 9
	LastHour    = 23
	SlotsPerDay = (LastHour-FirstHour)*2 + 1
	SlotCount   = DayCount * SlotsPerDay
)

// SlotID identifies one 30-minute cell of the weekly grid, encoded as
// "day-hour-minute" (e.g. "0-9-30" is Monday 09:30). Slots are pure
// identifiers: they are looked up, never created or destroyed.
type SlotID string

// NewSlotID builds the canonical id for a grid cell. It does not
// validate; pair it with IsValid when the coordinates are untrusted.
func NewSlotID(day, hour, minute int) SlotID {
	return SlotID(fmt.Sprintf("%d-%d-%d", day, hour, minute))
}

// Parse splits a SlotID into its day, hour and minute coordinates.
func (id SlotID) Parse() (day, hour, minute int, err error) {
	parts := strings.Split(string(id), "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed slot id %q", id)
	}
	day, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed slot id %q", id)
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed slot id %q", id)
	}
	minute, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed slot id %q", id)
	}
	return day, hour, minute, nil
}

// IsValid reports whether id addresses a cell of the fixed grid.
func IsValid(id SlotID) bool {
	day, hour, minute, err := id.Parse()
	if err != nil {
		return false
	}
	if day < 0 || day >= DayCount {
		return false
	}
	if hour < FirstHour || hour > LastHour {
		return false
	}
	if minute != 0 && minute != 30 {
		return false
	}
	// The grid ends at 23:00; there is no 23:30 bucket.
	if hour == LastHour && minute == 30 {
		return false
	}
	// Reject non-canonical spellings such as "00-09-00".
	return NewSlotID(day, hour, minute) == id
}

// AllSlots returns every slot of the grid in row-major order: all of
// Monday's buckets first, each day ascending by time. The ordering is
// deterministic and is what callers iterate for stable rendering.
func AllSlots() []SlotID {
	slots := make([]SlotID, 0, SlotCount)
	for day := 0; day < DayCount; day++ {
		for hour := FirstHour; hour <= LastHour; hour++ {
			slots = append(slots, NewSlotID(day, hour, 0))
			if hour != LastHour {
				slots = append(slots, NewSlotID(day, hour, 30))
			}
		}
	}
	return slots
}
