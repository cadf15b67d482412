// Package webhook POSTs signed change notifications to configured URLs.
//
// Each request carries the JSON-encoded change as its body together with:
//
//	X-HMS-Event:     <resource>.<action>
//	X-HMS-Delivery:  unique delivery id
//	X-HMS-Signature: sha256=<hex HMAC-SHA256 of the body keyed by the shared secret>
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/platform/events"
)

const (
	HeaderEvent     = "X-HMS-Event"
	HeaderDelivery  = "X-HMS-Delivery"
	HeaderSignature = "X-HMS-Signature"
)

var ErrClosed = errors.New("webhook: notifier closed")

// SignPayload returns the hex-encoded HMAC-SHA256 of payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header value, with or without the
// "sha256=" prefix.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

type Config struct {
	URLs       []string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	QueueSize  int
	Workers    int
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryWait <= 0 {
		c.RetryWait = 500 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
}

// Result is the outcome of one delivery to one URL.
type Result struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Notifier queues changes and delivers them on background workers, so a slow
// or failing receiver never delays the request that caused the change.
type Notifier struct {
	cfg    Config
	client *resty.Client
	logger zerolog.Logger

	queue chan events.Change
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewNotifier(cfg Config, logger zerolog.Logger) *Notifier {
	cfg.applyDefaults()
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait * 8).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "hms-webhook/1").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Notifier{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "webhook").Logger(),
		queue:  make(chan events.Change, cfg.QueueSize),
	}
}

// Enabled reports whether any URL is configured.
func (n *Notifier) Enabled() bool {
	return len(n.cfg.URLs) > 0
}

// Start launches the delivery workers.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	for i := 0; i < n.cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for change := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout*time.Duration(n.cfg.MaxRetries+1)+n.cfg.RetryWait*8)
		n.Deliver(ctx, change)
		cancel()
	}
}

// HandleChange is an events.Handler. It enqueues without blocking and drops
// the change when the queue is full.
func (n *Notifier) HandleChange(_ context.Context, change events.Change) {
	if !n.Enabled() {
		return
	}
	if err := n.Enqueue(change); err != nil {
		n.logger.Warn().Err(err).Str("event", change.Type()).Msg("webhook not queued")
	}
}

func (n *Notifier) Enqueue(change events.Change) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- change:
		return nil
	default:
		return fmt.Errorf("webhook: queue full (%d)", cap(n.queue))
	}
}

// Deliver sends the change to every URL synchronously.
func (n *Notifier) Deliver(ctx context.Context, change events.Change) []Result {
	payload, err := json.Marshal(change)
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal change")
		return nil
	}
	signature := "sha256=" + SignPayload(payload, n.cfg.Secret)

	results := make([]Result, 0, len(n.cfg.URLs))
	for _, url := range n.cfg.URLs {
		res := n.post(ctx, url, change.Type(), signature, payload)
		var evt *zerolog.Event
		if res.OK() {
			evt = n.logger.Info()
		} else {
			evt = n.logger.Warn().AnErr("error", res.Err)
		}
		evt.Str("url", url).
			Str("event", change.Type()).
			Int("status", res.StatusCode).
			Int("attempts", res.Attempts).
			Msg("webhook delivery")
		results = append(results, res)
	}
	return results
}

func (n *Notifier) post(ctx context.Context, url, eventType, signature string, payload []byte) Result {
	res := Result{URL: url}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader(HeaderEvent, eventType).
		SetHeader(HeaderDelivery, uuid.New().String()).
		SetHeader(HeaderSignature, signature).
		SetBody(payload).
		Post(url)
	if resp != nil {
		res.StatusCode = resp.StatusCode()
		if resp.Request != nil {
			res.Attempts = resp.Request.Attempt
		}
	}
	if err != nil {
		res.Err = err
		return res
	}
	if resp.IsError() {
		res.Err = fmt.Errorf("webhook: %s responded %d", url, resp.StatusCode())
	}
	return res
}

// Close stops accepting changes and waits for queued deliveries to finish or
// for ctx to expire.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	started := n.started
	n.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
