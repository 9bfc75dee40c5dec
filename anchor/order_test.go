package anchor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, `"Expired"`, string(b))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"success"`), &s))
	assert.Equal(t, StatusSuccess, s)

	assert.Error(t, json.Unmarshal([]byte(`"Lost"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`3`), &s))
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

func TestStorageOrderJSONShape(t *testing.T) {
	o := StorageOrder{
		ContentID:    "bafy",
		FileSize:     5,
		Status:       StatusPending,
		ReplicaCount: 0,
		Amount:       "0 CRU",
		Placeholder:  true,
		ExpiresAt:    time.Unix(0, 0).UTC(),
	}
	b, err := json.Marshal(o)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "bafy", m["contentId"])
	assert.Equal(t, "Pending", m["status"])
	assert.Equal(t, "0 CRU", m["amount"])
	assert.Equal(t, float64(0), m["replicaCount"])
	assert.Equal(t, true, m["placeholder"])
	assert.NotContains(t, m, "txId")
}

func TestStorageOrderExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, StorageOrder{}.Expired(now))
	assert.False(t, StorageOrder{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, StorageOrder{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}

func TestPrice(t *testing.T) {
	assert.Equal(t, uint64(1000), Price(0, 1000))
	assert.Equal(t, uint64(1000), Price(5, 1000))
	assert.Equal(t, uint64(1000), Price(1<<20, 1000))
	assert.Equal(t, uint64(2000), Price(1<<20+1, 1000))
	assert.Equal(t, uint64(0), Price(10, 0))
	assert.Equal(t, "1000 CRU", FormatAmount(1000, "CRU"))
}
