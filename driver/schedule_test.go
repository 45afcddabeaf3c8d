package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleIncludesExpectedCoarseToFineSequence(t *testing.T) {
	schedule, err := BuildSchedule([3]int{64, 64, 64}, 3, [3]int{4, 4, 4})
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assert.Equal(t, [3]int{16, 16, 16}, schedule[0])
	assert.Equal(t, [3]int{8, 8, 8}, schedule[1])
	assert.Equal(t, [3]int{4, 4, 4}, schedule[2])
}

func TestScheduleIsStrictlyDecreasing(t *testing.T) {
	schedule, err := BuildSchedule([3]int{64, 64, 64}, 3, [3]int{4, 4, 4})
	require.NoError(t, err)
	for i := 1; i < len(schedule); i++ {
		for d := 0; d < 3; d++ {
			assert.Less(t, schedule[i][d], schedule[i-1][d])
		}
	}
}

func TestScheduleLengthOneWhenTargetAlreadyCoarse(t *testing.T) {
	schedule, err := BuildSchedule([3]int{8, 8, 8}, 3, [3]int{4, 4, 4})
	require.NoError(t, err)
	assert.Len(t, schedule, 1)
	assert.Equal(t, [3]int{4, 4, 4}, schedule[0])
}

func TestScheduleRejectsNonPositiveSpacing(t *testing.T) {
	_, err := BuildSchedule([3]int{64, 64, 64}, 3, [3]int{0, 4, 4})
	assert.Error(t, err)
}
