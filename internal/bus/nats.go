// internal/bus/nats.go
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tendant/simple-compressor/internal/process"
)

type Client struct {
	nc      *nats.Conn
	subject string
}

func Connect(url, subject string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc, subject: subject}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, msg.Data)
	})
}

// ProgressEvent is published after every change to a job's progress record.
type ProgressEvent struct {
	JobID      string         `json:"job_id"`
	Progress   process.Record `json:"progress"`
	HappenedAt int64          `json:"happened_at"`
}

// ProgressSubject is the subject progress for jobID is published on.
func ProgressSubject(base, jobID string) string {
	return base + "." + jobID
}

// PublishProgress publishes rec on <subject>.<jobID>. Failures are logged and
// never reach the job.
func (c *Client) PublishProgress(jobID string, rec process.Record) {
	evt := ProgressEvent{JobID: jobID, Progress: rec, HappenedAt: time.Now().Unix()}
	subject := ProgressSubject(c.subject, jobID)
	if err := c.PublishJSON(subject, evt); err != nil {
		slog.Error("publish progress failed", "subject", subject, "job_id", jobID, "err", err)
	}
}

// WatchProgress delivers every progress event for jobID, or for all jobs when
// jobID is "*".
func (c *Client) WatchProgress(jobID string, handler func(ProgressEvent)) (*nats.Subscription, error) {
	return c.SubscribeJSON(ProgressSubject(c.subject, jobID), func(_ context.Context, data []byte) {
		var evt ProgressEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("discarding malformed progress event", "err", err)
			return
		}
		handler(evt)
	})
}
