package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardhouse/linesman/chatmod/engine"
	"github.com/cardhouse/linesman/platform"
)

func TestGatewayFrameDecoding(t *testing.T) {
	assert := assert.New(t)

	raw := `{
		"seq": 42,
		"type": "message.create",
		"message": {
			"id": "m1",
			"channel_id": "c1",
			"community_id": "g1",
			"author_id": "u1",
			"author_name": "alice",
			"author_bot": false,
			"content": "hello",
			"timestamp": 1700000000000
		}
	}`
	var frame gatewayFrame
	assert.NoError(json.Unmarshal([]byte(raw), &frame))
	assert.Equal(int64(42), frame.Seq)
	assert.Equal("message.create", frame.Type)
	assert.NotNil(frame.Message)

	msg := frame.Message.toPlatform()
	assert.Equal("m1", msg.ID)
	assert.Equal("c1", msg.ChannelID)
	assert.Equal("g1", msg.CommunityID)
	assert.Equal("u1", msg.AuthorID)
	assert.Equal("alice (u1)", msg.AuthorDisplay)
	assert.False(msg.AuthorIsBot)
	assert.Equal(time.UnixMilli(1700000000000), msg.Timestamp)
}

func TestGatewayConsumeAndDisconnect(t *testing.T) {
	assert := assert.New(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gateway/events", r.URL.Path)
		con, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer con.Close()
		require.NoError(t, con.WriteJSON(gatewayFrame{Seq: 1, Type: "message.create", Message: &wireMessage{
			ID: "m1", ChannelID: "c1", CommunityID: "g1", AuthorID: "u1",
			AuthorName: "alice", Content: "hello",
		}}))
		require.NoError(t, con.WriteJSON(gatewayFrame{Seq: 2, Type: "presence.update"}))
	}))
	defer srv.Close()

	eng, _ := engine.EngineTestFixture()
	var passed []string
	eng.Passthrough = func(ctx context.Context, msg platform.Message) error {
		passed = append(passed, msg.ID)
		return nil
	}

	gc := &GatewayConsumer{
		Logger: slog.Default(),
		Engine: eng,
		Host:   "ws" + strings.TrimPrefix(srv.URL, "http"),
	}

	// the server hangs up after two frames; runOnce surfaces that to the
	// reconnect loop after dispatching what it read
	err := gc.runOnce(context.Background())
	assert.Error(err)
	assert.Equal(int64(2), atomic.LoadInt64(&gc.lastSeq))
	assert.Equal([]string{"m1"}, passed)
}

func TestNextBackoff(t *testing.T) {
	assert := assert.New(t)

	// rapid failures double, capped at 30s
	assert.Equal(2*time.Second, nextBackoff(time.Second, 0))
	assert.Equal(16*time.Second, nextBackoff(8*time.Second, 100*time.Millisecond))
	assert.Equal(30*time.Second, nextBackoff(16*time.Second, time.Second))
	assert.Equal(30*time.Second, nextBackoff(30*time.Second, time.Second))

	// a connection that held for a while starts the ladder over
	assert.Equal(time.Second, nextBackoff(30*time.Second, 10*time.Minute))
}
