package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_Record(t *testing.T) {
	c := New()

	c.RecordRankingSubmission(true)
	c.RecordRankingSubmission(true)
	c.RecordRankingSubmission(false)
	c.RecordPersistFailure("postgres")
	c.SetLeaderboardSize(42)
	c.RecordMatchCreated()
	c.RecordMatchClosed("expired")
	c.SetPlayersWaiting(1)
	c.RecordInboundMessage("INPUT")
	c.SetActiveConnections(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rankingSubmissions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rankingSubmissions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.persistFailures.WithLabelValues("postgres")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.leaderboardSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matchesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matchesClosed.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.playersWaiting))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inboundMessages.WithLabelValues("INPUT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeConnections))
}

func TestCollectors_Handler(t *testing.T) {
	c := New()
	c.RecordMatchCreated()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "typeduel_matches_created_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
