// internal/schedule/grid_test.go
package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSlots(t *testing.T) {
	slots := AllSlots()
	require.Len(t, slots, SlotCount)

	// Row-major: Monday first, ascending by time within the day.
	assert.Equal(t, SlotID("0-9-0"), slots[0])
	assert.Equal(t, SlotID("0-9-30"), slots[1])
	assert.Equal(t, SlotID("0-23-0"), slots[SlotsPerDay-1])
	assert.Equal(t, SlotID("1-9-0"), slots[SlotsPerDay])
	assert.Equal(t, SlotID("4-23-0"), slots[SlotCount-1])

	// Every produced id validates, and ids are unique.
	seen := make(map[SlotID]bool, len(slots))
	for _, id := range slots {
		assert.True(t, IsValid(id), "slot %q should be valid", id)
		assert.False(t, seen[id], "slot %q duplicated", id)
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	valid := []SlotID{"0-9-0", "0-9-30", "4-23-0", "2-15-30", "3-22-30"}
	for _, id := range valid {
		assert.True(t, IsValid(id), "expected %q valid", id)
	}

	invalid := []SlotID{
		"",
		"0-9",
		"0-9-0-0",
		"5-9-0",    // no Saturday
		"-1-9-0",   // negative day
		"0-8-30",   // before opening
		"0-24-0",   // past closing
		"0-23-30",  // grid ends at 23:00
		"0-9-15",   // not a bucket boundary
		"a-9-0",    // junk
		"00-09-00", // non-canonical
	}
	for _, id := range invalid {
		assert.False(t, IsValid(id), "expected %q invalid", id)
	}
}

func TestParse(t *testing.T) {
	day, hour, minute, err := SlotID("3-14-30").Parse()
	require.NoError(t, err)
	assert.Equal(t, 3, day)
	assert.Equal(t, 14, hour)
	assert.Equal(t, 30, minute)

	_, _, _, err = SlotID("garbage").Parse()
	assert.Error(t, err)
}
