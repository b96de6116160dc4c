package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/model"
)

func TestSeatStream_PushesHoldChanges(t *testing.T) {
	env := newTestEnv(t)
	env.e.GET("/v1/trains/:id/seats/stream", env.seat.Stream)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/trains/"+env.trainID+"/seats/stream?date="+env.date, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ": connected"), "first line %q", line)
	require.Equal(t, 1, env.hub.Subscribers(env.trainID, env.date))

	env.hold(t, "alice", 2)

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "read stream")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ch model.SeatChange
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ch))
		assert.Equal(t, env.seats[2].ID, ch.SeatID)
		assert.Equal(t, model.SeatHeld, ch.Kind)
		assert.NotNil(t, ch.ExpiresAt)
		return
	}
}

func TestSeatStream_RejectsBadDate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.call(t, env.seat.Stream, http.MethodGet, "/?date=tomorrow", "", "", map[string]string{"id": env.trainID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
