package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var actor = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a := New(TypeStaked, "pool", actor, 10)
	b := New(TypeStaked, "pool", actor, 10)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(10), a.Timestamp)
}

func TestRecord_WithDoesNotShareMaps(t *testing.T) {
	base := New(TypeStaked, "pool", actor, 1)
	a := base.WithUint("lock_duration", 30)
	assert.Equal(t, "30", a.Attributes["lock_duration"])
	assert.Nil(t, base.Attributes)
}

func TestMulti_FansOut(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	Multi{first, nil, second}.Emit(context.Background(), New(TypeUnstaked, "pool", actor, 1))
	assert.Len(t, first.Records, 1)
	assert.Len(t, second.Records, 1)
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewMetricsSink(reg)

	staked := New(TypeStaked, "pool", actor, 1)
	staked.Amount = 500
	sink.Emit(context.Background(), staked)

	claimed := New(TypeRewardsClaimed, "pool", actor, 2)
	claimed.Amount = 25
	sink.Emit(context.Background(), claimed)

	assert.Equal(t, float64(500), testutil.ToFloat64(sink.staked.WithLabelValues("pool", "in")))
	assert.Equal(t, float64(25), testutil.ToFloat64(sink.rewards.WithLabelValues("pool")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.events.WithLabelValues("pool", string(TypeStaked))))
}

func TestWebhookExporter_FlushAndStop(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Record
		auth     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []Record `json:"events"`
			Count  int      `json:"count"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		received = append(received, body.Events...)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exporter, err := NewWebhookExporter(WebhookConfig{
		URL:       server.URL,
		APIKey:    "secret",
		BatchSize: 100,
		Interval:  time.Hour,
	})
	require.NoError(t, err)

	exporter.Emit(context.Background(), New(TypeStaked, "pool", actor, 1))
	require.NoError(t, exporter.Flush(context.Background()))

	exporter.Emit(context.Background(), New(TypeUnstaked, "pool", actor, 2))
	require.NoError(t, exporter.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, TypeStaked, received[0].Type)
	assert.Equal(t, TypeUnstaked, received[1].Type)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, 2, exporter.Status()["exported"])
}

func TestWebhookExporter_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	exporter, err := NewWebhookExporter(WebhookConfig{URL: server.URL, Interval: time.Hour})
	require.NoError(t, err)
	defer exporter.Stop(context.Background())

	exporter.Emit(context.Background(), New(TypeStaked, "pool", actor, 1))
	err = exporter.Flush(context.Background())
	assert.Error(t, err)
}

func TestNewWebhookExporter_RequiresURL(t *testing.T) {
	_, err := NewWebhookExporter(WebhookConfig{})
	assert.Error(t, err)
}
