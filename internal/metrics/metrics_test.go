package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.SessionResolved("command", "ok", 200*time.Millisecond)
	m.SessionResolved("command", "ok", time.Second)
	m.Replicated("edited", 3, 3)
	m.WebhookCreated("c1")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessions.WithLabelValues("command", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replications.WithLabelValues("edited")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reposted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooksCreated))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `anyedit_interactions_total{kind="command",result="ok"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionResolved("command", "ok", time.Second)
		m.Replicated("edited", 1, 1)
		m.WebhookCreated("c1")
	})
}
