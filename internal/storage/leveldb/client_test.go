package leveldb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

func newTestClient(t *testing.T, ttlHours int) *Client {
	t.Helper()
	client, err := NewClient(config.LevelDBConfig{Path: t.TempDir(), TTLHours: ttlHours})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLayoutRoundTrip(t *testing.T) {
	client := newTestClient(t, 1)

	layout := &models.JobLayout{
		Name:     "nightly",
		Tasks:    []string{"extract", "load"},
		Graph:    map[string][]string{"extract": {"load"}},
		Schedule: "0 2 * * *",
		Active:   true,
	}
	require.NoError(t, client.PutLayout(layout))

	got, err := client.GetLayout("nightly")
	require.NoError(t, err)
	assert.Equal(t, layout, got)
}

func TestGetLayout_Missing(t *testing.T) {
	client := newTestClient(t, 1)

	got, err := client.GetLayout("unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetLayout_Expired(t *testing.T) {
	client := newTestClient(t, 1)
	client.ttl = time.Millisecond

	require.NoError(t, client.PutLayout(&models.JobLayout{Name: "nightly"}))
	time.Sleep(5 * time.Millisecond)

	got, err := client.GetLayout("nightly")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCleanup_RemovesExpiredLayoutsOnly(t *testing.T) {
	client := newTestClient(t, 1)
	client.ttl = time.Millisecond

	require.NoError(t, client.PutLayout(&models.JobLayout{Name: "stale"}))
	require.NoError(t, client.PutCapacity(4))
	time.Sleep(5 * time.Millisecond)

	client.cleanup()

	_, err := client.db.Get([]byte(layoutPrefix+"stale"), nil)
	assert.Error(t, err)

	capacity, ok, err := client.GetCapacity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, capacity)
}

func TestCapacity(t *testing.T) {
	client := newTestClient(t, 1)

	_, ok, err := client.GetCapacity()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.PutCapacity(7))
	require.NoError(t, client.PutCapacity(3))

	capacity, ok, err := client.GetCapacity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, capacity)
}

func TestCapacity_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	client, err := NewClient(config.LevelDBConfig{Path: dir, TTLHours: 1})
	require.NoError(t, err)
	require.NoError(t, client.PutCapacity(5))
	require.NoError(t, client.Close())

	reopened, err := NewClient(config.LevelDBConfig{Path: dir, TTLHours: 1})
	require.NoError(t, err)
	defer reopened.Close()

	capacity, ok, err := reopened.GetCapacity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, capacity)
}
