package syncstate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/vclock"
)

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name     string
		course   vclock.VersionVector
		forum    vclock.VersionVector
		local    vclock.VersionVector
		expected models.SyncStatus
	}{
		{
			name:     "all empty",
			course:   vclock.New(),
			forum:    vclock.New(),
			local:    vclock.New(),
			expected: models.StatusSynced,
		},
		{
			name:     "all identical",
			course:   vclock.VersionVector{"a": 2, "b": 1},
			forum:    vclock.VersionVector{"a": 2, "b": 1},
			local:    vclock.VersionVector{"a": 2, "b": 1},
			expected: models.StatusSynced,
		},
		{
			name:     "course and forum concurrent",
			course:   vclock.VersionVector{"a": 1},
			forum:    vclock.VersionVector{"b": 1},
			local:    vclock.New(),
			expected: models.StatusConflict,
		},
		{
			name:     "course ahead of local",
			course:   vclock.VersionVector{"a": 2},
			forum:    vclock.VersionVector{"a": 1},
			local:    vclock.VersionVector{"a": 1},
			expected: models.StatusPendingSync,
		},
		{
			name:     "local ahead of both",
			course:   vclock.VersionVector{"a": 1},
			forum:    vclock.VersionVector{"a": 1},
			local:    vclock.VersionVector{"a": 3},
			expected: models.StatusPendingSync,
		},
		{
			name:     "local concurrent with forum",
			course:   vclock.VersionVector{"a": 1},
			forum:    vclock.VersionVector{"a": 1},
			local:    vclock.VersionVector{"b": 1},
			expected: models.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineStatus(tt.course, tt.forum, tt.local))
		})
	}
}

func genStatusVector() gopter.Gen {
	replicas := []string{"a", "b", "c"}
	replica := gen.IntRange(0, len(replicas)-1).Map(func(i int) string { return replicas[i] })
	return gen.MapOf(replica, gen.UInt64Range(0, 4))
}

func TestDetermineStatusProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("concurrent platforms always conflict", prop.ForAll(
		func(a, b, l map[string]uint64) bool {
			if vclock.VersionVector(a).Compare(b) != vclock.Concurrent {
				return true
			}
			return DetermineStatus(a, b, l) == models.StatusConflict
		},
		genStatusVector(), genStatusVector(), genStatusVector(),
	))

	properties.Property("status is deterministic", prop.ForAll(
		func(a, b, l map[string]uint64) bool {
			return DetermineStatus(a, b, l) == DetermineStatus(a, b, l)
		},
		genStatusVector(), genStatusVector(), genStatusVector(),
	))

	properties.Property("identical vectors are synced", prop.ForAll(
		func(a map[string]uint64) bool {
			v := vclock.VersionVector(a)
			return DetermineStatus(v, v.Clone(), v.Clone()) == models.StatusSynced
		},
		genStatusVector(),
	))

	properties.TestingRun(t)
}
