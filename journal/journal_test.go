package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndList(t *testing.T) {
	j := openTemp(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []Action{ActionUserCreated, ActionPermissionGranted, ActionPermissionRevoked} {
		require.NoError(t, j.Append(Record{
			At:        base.Add(time.Duration(i) * time.Second),
			Action:    action,
			Principal: "tenant1",
			Resource:  "Topic:tenant1-",
		}))
	}

	records, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, ActionPermissionRevoked, records[0].Action)
	assert.Equal(t, ActionUserCreated, records[2].Action)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID, "ID filled on append")
		assert.Equal(t, "tenant1", rec.Principal)
	}
}

func TestListLimit(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(Record{Action: ActionPermissionGranted}))
	}
	records, err := j.List(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNilJournalIsNoOp(t *testing.T) {
	var j *Journal
	require.NoError(t, j.Append(Record{Action: ActionUserCreated}))
	records, err := j.List(0)
	require.NoError(t, err)
	assert.Nil(t, records)
	require.NoError(t, j.Close())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "user-created", ActionUserCreated.String())
	assert.Equal(t, "permission-granted", ActionPermissionGranted.String())
	assert.Equal(t, "permission-revoked", ActionPermissionRevoked.String())
}
