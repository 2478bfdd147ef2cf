// Package consumer subscribes to the chat platform's websocket event gateway
// and feeds message events into the moderation engine.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/cardhouse/linesman/chatmod/engine"
	"github.com/cardhouse/linesman/platform"
)

var gatewayCursorKey = "linesman/seq"

type GatewayConsumer struct {
	Logger      *slog.Logger
	RedisClient *redis.Client
	Engine      *engine.Engine
	Host        string

	// lastSeq is the most recent event sequence number we've received and
	// begun to handle. Periodically persisted to redis, if redis is present,
	// so a restart can resume instead of replaying. Use atomics when touching
	// it; the read loop and the persist loop run concurrently.
	lastSeq int64
}

// One frame from the gateway stream.
type gatewayFrame struct {
	Seq     int64        `json:"seq"`
	Type    string       `json:"type"`
	Message *wireMessage `json:"message,omitempty"`
}

type wireMessage struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	CommunityID string `json:"community_id"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	AuthorBot   bool   `json:"author_bot"`
	Content     string `json:"content"`
	// unix millis
	Timestamp int64 `json:"timestamp"`
}

func (m *wireMessage) toPlatform() platform.Message {
	return platform.Message{
		ID:            m.ID,
		ChannelID:     m.ChannelID,
		CommunityID:   m.CommunityID,
		AuthorID:      m.AuthorID,
		AuthorDisplay: fmt.Sprintf("%s (%s)", m.AuthorName, m.AuthorID),
		AuthorIsBot:   m.AuthorBot,
		Content:       m.Content,
		Timestamp:     time.UnixMilli(m.Timestamp),
	}
}

// Run dials the gateway and processes events until the context is cancelled.
// Connection drops are retried with backoff; event processing failures are
// logged and never abort the stream.
func (gc *GatewayConsumer) Run(ctx context.Context) error {
	if gc.Engine == nil {
		return fmt.Errorf("nil engine")
	}

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		err := gc.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, time.Since(started))
		gc.Logger.Warn("gateway connection lost, reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// nextBackoff picks the delay before the next dial attempt. Rapid failures
// double the delay up to 30 seconds; a connection that survived a while means
// the upstream recovered, so the delay starts over.
func nextBackoff(cur, connectedFor time.Duration) time.Duration {
	if connectedFor >= time.Minute {
		return time.Second
	}
	next := cur * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}

func (gc *GatewayConsumer) runOnce(ctx context.Context) error {
	cur, err := gc.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(gc.Host)
	if err != nil {
		return fmt.Errorf("invalid gateway host URI: %w", err)
	}
	u.Path = "/gateway/events"
	if cur != 0 {
		u.RawQuery = fmt.Sprintf("cursor=%d", cur)
	}
	gc.Logger.Info("subscribing to gateway event stream", "upstream", gc.Host, "cursor", cur)
	con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{
		"User-Agent": []string{fmt.Sprintf("linesman/%s", versioninfo.Short())},
	})
	if err != nil {
		return fmt.Errorf("subscribing to gateway failed (dialing): %w", err)
	}
	defer con.Close()

	// the closer is tied to this connection, not the daemon lifetime, so a
	// reconnecting consumer does not accumulate one goroutine per attempt
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		con.Close()
	}()

	for {
		var frame gatewayFrame
		if err := con.ReadJSON(&frame); err != nil {
			return fmt.Errorf("reading gateway frame: %w", err)
		}
		atomic.StoreInt64(&gc.lastSeq, frame.Seq)
		gc.handleFrame(ctx, &frame)
	}
}

func (gc *GatewayConsumer) handleFrame(ctx context.Context, frame *gatewayFrame) {
	switch frame.Type {
	case "message.create":
		if frame.Message == nil {
			gc.Logger.Warn("message frame without message body", "seq", frame.Seq)
			return
		}
		if err := gc.Engine.ProcessMessage(ctx, frame.Message.toPlatform()); err != nil {
			gc.Logger.Error("processing message failed", "seq", frame.Seq, "err", err)
		}
	default:
		// other event types (presence, typing, edits) are not moderated yet
	}
}

func (gc *GatewayConsumer) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		gc.Logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := gc.RedisClient.Get(ctx, gatewayCursorKey).Int64()
	if err == redis.Nil {
		gc.Logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	return val, err
}

func (gc *GatewayConsumer) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	lastSeq := atomic.LoadInt64(&gc.lastSeq)
	if lastSeq <= 0 {
		return nil
	}
	return gc.RedisClient.Set(ctx, gatewayCursorKey, lastSeq, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (gc *GatewayConsumer) RunPersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if atomic.LoadInt64(&gc.lastSeq) >= 1 {
				gc.Logger.Info("persisting final cursor seq value", "seq", atomic.LoadInt64(&gc.lastSeq))
				if err := gc.PersistCursor(context.Background()); err != nil {
					gc.Logger.Error("failed to persist cursor", "err", err)
				}
			}
			return nil
		case <-ticker.C:
			if err := gc.PersistCursor(ctx); err != nil {
				gc.Logger.Error("failed to persist cursor", "err", err)
			}
		}
	}
}
