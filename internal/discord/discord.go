// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discord talks to the Discord REST API (v10).  It only knows
// how to resolve the current user, list a channel's history and delete
// single messages.
package discord

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matta/chatsweep/internal/message"
	"github.com/matta/chatsweep/internal/wait"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

const (
	DefaultBaseURL   = "https://discord.com/api/v10"
	DefaultUserAgent = "chatsweep (https://github.com/matta/chatsweep, 1.0)"

	// MaxPageSize is the largest limit the messages endpoint accepts.
	MaxPageSize = 100

	// See https://discord.com/developers/docs/topics/rate-limits#global-rate-limit
	globalRequestsPerSecond = 50
	rateLimitPerSecond      = globalRequestsPerSecond * 0.8
	rateLimitBurst          = globalRequestsPerSecond

	// Used when a 429 carries neither a retry_after body field nor a
	// Retry-After header.
	defaultRetryAfter = time.Second
)

var (
	// ErrAuth is the cause of every error returned by Me.
	ErrAuth = errors.New("discord authentication failed")
)

// Client provides access to the messages of Discord channels.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a test
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLimiter replaces the default global request quota.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithSleep replaces the function used to wait out a rate limit.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func New(client *http.Client, opts ...Option) *Client {
	c := &Client{
		http:      client,
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
		sleep:     wait.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues a single request.  Responses outside the 2xx range are
// returned as a *googleapi.Error with the body already consumed.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("User-Agent", c.userAgent)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if err := googleapi.CheckResponse(res); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}

// Me returns the identity the client's credential belongs to.
func (c *Client) Me(ctx context.Context) (message.Identity, error) {
	res, err := c.do(ctx, http.MethodGet, "/users/@me", nil)
	if err != nil {
		if ctx.Err() != nil {
			return message.Identity{}, ctx.Err()
		}
		return message.Identity{}, errors.Wrapf(ErrAuth, "getting current user: %v", err)
	}
	defer googleapi.CloseBody(res)

	var id message.Identity
	if err := json.NewDecoder(res.Body).Decode(&id); err != nil {
		return message.Identity{}, errors.Wrapf(ErrAuth, "decoding current user: %v", err)
	}
	if id.ID == "" {
		return message.Identity{}, errors.Wrap(ErrAuth, "current user has no id")
	}
	return id, nil
}

func channelMessagesPath(channel string) string {
	return "/channels/" + url.PathEscape(channel) + "/messages"
}

// ListMessages returns up to limit messages of channel, newest first,
// that are older than the message named by before.  An empty before
// fetches the most recent page.  limit is clamped to 1..MaxPageSize.
func (c *Client) ListMessages(ctx context.Context, channel string, limit int, before string) ([]message.Message, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		q.Set("before", before)
	}
	res, err := c.do(ctx, http.MethodGet, channelMessagesPath(channel), q)
	if err != nil {
		return nil, errors.Wrapf(err, "listing messages in channel %v", channel)
	}
	defer googleapi.CloseBody(res)

	var page []message.Message
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, errors.Wrapf(err, "decoding messages in channel %v", channel)
	}
	return page, nil
}

// DeleteMessage deletes a single message.  While the server answers
// with a rate limit the call waits for the advised duration and tries
// again, with no upper bound on the number of attempts.
func (c *Client) DeleteMessage(ctx context.Context, channel, id string) error {
	path := channelMessagesPath(channel) + "/" + url.PathEscape(id)
	for {
		res, err := c.do(ctx, http.MethodDelete, path, nil)
		if err == nil {
			googleapi.CloseBody(res)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait, limited := retryAfter(err)
		if !limited {
			return errors.Wrapf(err, "deleting message %v", id)
		}
		log.Printf("rate limited deleting message %v; waiting %v", id, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// retryAfter reports whether err is a rate limit response and, if so,
// how long the server asked us to wait.
func retryAfter(err error) (time.Duration, bool) {
	cause, ok := errors.Cause(err).(*googleapi.Error)
	if !ok || cause.Code != http.StatusTooManyRequests {
		return 0, false
	}
	var body struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if json.Unmarshal([]byte(cause.Body), &body) == nil && body.RetryAfter != nil {
		return seconds(*body.RetryAfter), true
	}
	if h := cause.Header.Get("Retry-After"); h != "" {
		if f, err := strconv.ParseFloat(h, 64); err == nil {
			return seconds(f), true
		}
	}
	return defaultRetryAfter, true
}

func seconds(f float64) time.Duration {
	if f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// IsRateLimited reports whether err was caused by a 429 response.
func IsRateLimited(err error) bool {
	_, limited := retryAfter(err)
	return limited
}

// StatusCode returns the HTTP status behind err, or 0 if err did not
// come from an HTTP response.
func StatusCode(err error) int {
	if cause, ok := errors.Cause(err).(*googleapi.Error); ok {
		return cause.Code
	}
	return 0
}
