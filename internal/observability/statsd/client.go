// Package statsd emits auth and storefront counters over the StatsD UDP
// line protocol. Metrics are an observability aid only; every path degrades
// to a no-op when the sink is disabled or unreachable.
package statsd

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is the minimal interface components use to emit metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes how to reach a StatsD-compatible endpoint.
type Config struct {
	Enabled bool
	Address string
	Prefix  string
	Logger  *slog.Logger
}

// Client emits metrics over UDP. It is safe for concurrent use.
// A disabled client is valid and silently discards everything.
type Client struct {
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured endpoint unless disabled.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "."), logger: logger}
	if !cfg.Enabled || strings.TrimSpace(cfg.Address) == "" {
		return c, nil
	}

	conn, err := net.Dial("udp", strings.TrimSpace(cfg.Address))
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", cfg.Address, err)
	}
	c.conn = conn
	return c, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.write(name, strconv.FormatInt(value, 10)+"|c", tags)
}

// Gauge records the current value of a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.write(name, strconv.FormatFloat(value, 'f', -1, 64)+"|g", tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.write(name, strconv.FormatFloat(ms, 'f', -1, 64)+"|ms", tags)
}

// Close releases the underlying connection if one was established.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) write(name, payload string, tags map[string]string) {
	if c == nil || name == "" {
		return
	}

	metric := name
	if c.prefix != "" {
		metric = c.prefix + "." + name
	}
	line := metric + ":" + payload + formatTags(tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "metric", metric, "error", err)
	}
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + tags[k]
	}
	return "|#" + strings.Join(parts, ",")
}
