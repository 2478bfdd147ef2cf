// Package rest implements the platform contracts against the chat server's
// HTTP API. All calls go through a shared rate limiter so a burst of
// moderation actions cannot trip the platform's own throttling.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/cardhouse/linesman/platform"
	"github.com/cardhouse/linesman/util"
)

type Client struct {
	Host    string
	Token   string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

var _ platform.Client = (*Client)(nil)

func NewClient(host, token string, requestsPerSec int) *Client {
	return &Client{
		Host:    host,
		Token:   token,
		HTTP:    util.RobustHTTPClient(),
		Limiter: rate.NewLimiter(rate.Limit(requestsPerSec), requestsPerSec),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("platform API request failed: %s %s: status=%d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding platform API response: %w", err)
		}
	}
	return nil
}

var errNotFound = fmt.Errorf("platform API: not found")

type sendMessageBody struct {
	Content string `json:"content"`
}

func (c *Client) SendChannel(ctx context.Context, channelID, content string) error {
	path := fmt.Sprintf("/api/v1/channels/%s/messages", url.PathEscape(channelID))
	return c.do(ctx, http.MethodPost, path, sendMessageBody{Content: content}, nil)
}

func (c *Client) SendDirect(ctx context.Context, userID, content string) error {
	path := fmt.Sprintf("/api/v1/users/%s/messages", url.PathEscape(userID))
	return c.do(ctx, http.MethodPost, path, sendMessageBody{Content: content}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/api/v1/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) AddMarking(ctx context.Context, communityID, userID, roleID string) error {
	path := fmt.Sprintf("/api/v1/communities/%s/members/%s/roles/%s",
		url.PathEscape(communityID), url.PathEscape(userID), url.PathEscape(roleID))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

type removeMemberBody struct {
	Reason string `json:"reason"`
}

func (c *Client) RemoveMember(ctx context.Context, communityID, userID, reason string) error {
	path := fmt.Sprintf("/api/v1/communities/%s/members/%s", url.PathEscape(communityID), url.PathEscape(userID))
	return c.do(ctx, http.MethodDelete, path, removeMemberBody{Reason: reason}, nil)
}

type namedRef struct {
	ID string `json:"id"`
}

// ChannelByName resolves a channel name to its ID. An unknown name returns
// empty, not an error; callers treat that as "skip the side effect".
func (c *Client) ChannelByName(ctx context.Context, communityID, name string) (string, error) {
	path := fmt.Sprintf("/api/v1/communities/%s/channels/by-name/%s",
		url.PathEscape(communityID), url.PathEscape(name))
	var ref namedRef
	if err := c.do(ctx, http.MethodGet, path, nil, &ref); err != nil {
		if err == errNotFound {
			return "", nil
		}
		return "", err
	}
	return ref.ID, nil
}

func (c *Client) RoleByName(ctx context.Context, communityID, name string) (string, error) {
	path := fmt.Sprintf("/api/v1/communities/%s/roles/by-name/%s",
		url.PathEscape(communityID), url.PathEscape(name))
	var ref namedRef
	if err := c.do(ctx, http.MethodGet, path, nil, &ref); err != nil {
		if err == errNotFound {
			return "", nil
		}
		return "", err
	}
	return ref.ID, nil
}
