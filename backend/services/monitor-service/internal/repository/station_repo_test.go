package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The reactivation property lives in the upsert's conflict clause: a frame
// from a previously-inactive station must flip it back to active in the same
// statement. Guard the clause so an edit cannot silently drop it.
func TestStationUpsertReactivatesOnConflict(t *testing.T) {
	_, conflict, found := strings.Cut(stationUpsertQuery, "ON CONFLICT (station_id) DO UPDATE SET")
	require.True(t, found, "upsert lost its conflict clause")

	assert.Contains(t, conflict, "is_active = TRUE")
	assert.Contains(t, conflict, "last_seen = NOW()")
}
