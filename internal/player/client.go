// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package player talks to the media player's HTTP control interface
// (VLC's /requests/status.json). Every request is bounded by a timeout,
// retried with a short linear backoff and guarded by a circuit breaker so a
// wedged player cannot stall the heartbeat or the watchdog.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/retry"
)

// Control interface commands.
const (
	CmdPlay       = "pl_play"
	CmdPause      = "pl_pause"
	CmdStop       = "pl_stop"
	CmdNext       = "pl_next"
	CmdPrevious   = "pl_previous"
	CmdEmpty      = "pl_empty"
	CmdVolume     = "volume"
	CmdSnapshot   = "snapshot"
	CmdInPlay     = "in_play"
	statusCommand = "status"
)

const statusPath = "/requests/status.json"

// ErrUnauthorized means the control interface rejected the password.
var ErrUnauthorized = errors.New("player control interface rejected credentials")

// Client is the control interface client.
type Client struct {
	base     string
	password string
	timeout  time.Duration
	http     *http.Client
	policy   retry.Policy
	breaker  *breaker
}

// NewClient builds a client for cfg.
func NewClient(cfg config.PlayerConfig) *Client {
	base := (&url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}).String()
	return newClient(base, cfg.Password, cfg.RequestTimeout, retry.Linear(1+cfg.RetryAttempts, cfg.RetryDelay))
}

func newClient(base, password string, timeout time.Duration, policy retry.Policy) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		password: password,
		timeout:  timeout,
		http:     &http.Client{},
		policy:   policy,
		breaker:  newBreaker("player-http"),
	}
}

// Status polls the player and maps its response to a PlayerStatus.
func (c *Client) Status(ctx context.Context) (models.PlayerStatus, error) {
	body, err := c.do(ctx, statusCommand, nil)
	if err != nil {
		return models.PlayerStatus{}, err
	}
	return parseStatus(body)
}

// Command sends one control command. params may be nil.
func (c *Client) Command(ctx context.Context, command string, params url.Values) error {
	_, err := c.do(ctx, command, params)
	return err
}

func (c *Client) Play(ctx context.Context) error     { return c.Command(ctx, CmdPlay, nil) }
func (c *Client) Pause(ctx context.Context) error    { return c.Command(ctx, CmdPause, nil) }
func (c *Client) Stop(ctx context.Context) error     { return c.Command(ctx, CmdStop, nil) }
func (c *Client) Next(ctx context.Context) error     { return c.Command(ctx, CmdNext, nil) }
func (c *Client) Previous(ctx context.Context) error { return c.Command(ctx, CmdPrevious, nil) }
func (c *Client) Snapshot(ctx context.Context) error { return c.Command(ctx, CmdSnapshot, nil) }

// Volume changes the volume by delta in player units (+10, -10).
func (c *Client) Volume(ctx context.Context, delta int) error {
	return c.Command(ctx, CmdVolume, url.Values{"val": {fmt.Sprintf("%+d", delta)}})
}

// Load replaces the playing item with input, usually the playlist path.
func (c *Client) Load(ctx context.Context, input string) error {
	return c.Command(ctx, CmdInPlay, url.Values{"input": {input}})
}

// do runs one command with retries. The breaker sees every attempt.
func (c *Client) do(ctx context.Context, command string, params url.Values) ([]byte, error) {
	start := time.Now()
	body, err := retry.Do(ctx, "player."+command, c.policy, func(ctx context.Context) ([]byte, error) {
		b, err := c.breaker.execute(func() ([]byte, error) {
			return c.request(ctx, command, params)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, ErrUnauthorized) {
			return nil, retry.Permanent(err)
		}
		return b, err
	})
	metrics.RecordPlayerCommand(command, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", command, err)
	}
	return body, nil
}

func (c *Client) request(ctx context.Context, command string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if command != statusCommand {
		q.Set("command", command)
	}

	u := c.base + statusPath
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth("", c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// vlcStatus is the subset of status.json Playwarden reads.
type vlcStatus struct {
	State       string  `json:"state"`
	Position    float64 `json:"position"`
	Time        int     `json:"time"`
	Length      int     `json:"length"`
	Volume      int     `json:"volume"`
	Information *struct {
		Category map[string]json.RawMessage `json:"category"`
	} `json:"information"`
}

func parseStatus(body []byte) (models.PlayerStatus, error) {
	var v vlcStatus
	if err := json.Unmarshal(body, &v); err != nil {
		return models.PlayerStatus{}, fmt.Errorf("decode player status: %w", err)
	}

	st := models.PlayerStatus{
		State:     mapState(v.State),
		Position:  clamp01(v.Position),
		TimeSec:   v.Time,
		LengthSec: v.Length,
		Volume:    v.Volume,
	}
	if v.Information != nil {
		if raw, ok := v.Information.Category["meta"]; ok {
			var meta struct {
				Filename string `json:"filename"`
				Title    string `json:"title"`
			}
			if json.Unmarshal(raw, &meta) == nil {
				st.CurrentItem = meta.Filename
				if st.CurrentItem == "" {
					st.CurrentItem = meta.Title
				}
			}
		}
	}
	return st, nil
}

func mapState(s string) models.PlayerState {
	switch strings.ToLower(s) {
	case "playing":
		return models.PlayerPlaying
	case "paused":
		return models.PlayerPaused
	case "stopped":
		return models.PlayerStopped
	default:
		return models.PlayerError
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
