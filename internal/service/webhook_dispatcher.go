package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"payflow/config"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookEnvelope is the JSON body POSTed to merchant endpoints. The envelope
// is rebuilt from the outbox row on every attempt, so retries carry identical
// bytes and the signature stays stable.
type webhookEnvelope struct {
	Event     string          `json:"event"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// WebhookDispatcher drains the outbox with a pool of workers. Each worker
// claims one due event at a time under a lease, delivers it, and records the
// outcome. Delivery is at-least-once; merchants dedupe by event id.
type WebhookDispatcher struct {
	webhookRepo  ports.WebhookRepository
	logRepo      ports.WebhookLogRepository
	merchantRepo ports.MerchantRepository
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	cfg          config.WebhookConfig
	log          zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewWebhookDispatcher(
	webhookRepo ports.WebhookRepository,
	logRepo ports.WebhookLogRepository,
	merchantRepo ports.MerchantRepository,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	cfg config.WebhookConfig,
	log zerolog.Logger,
) *WebhookDispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookDispatcher{
		webhookRepo:  webhookRepo,
		logRepo:      logRepo,
		merchantRepo: merchantRepo,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		cfg:          cfg,
		log:          log,
		stop:         make(chan struct{}),
	}
}

// Start launches the worker pool. Call Stop to drain.
func (d *WebhookDispatcher) Start() {
	workers := d.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.log.Info().Int("workers", workers).Dur("poll_interval", d.cfg.PollInterval).Msg("webhook dispatcher started")
}

// Stop signals all workers and waits for in-flight deliveries to finish.
func (d *WebhookDispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
	d.log.Info().Msg("webhook dispatcher stopped")
}

func (d *WebhookDispatcher) worker(id int) {
	defer d.wg.Done()
	poll := d.cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.drain(id)
		}
	}
}

// drain claims and delivers events until nothing is due or a stop is
// requested. A claim that errors backs off until the next tick.
func (d *WebhookDispatcher) drain(workerID int) {
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		ctx := context.Background()
		event, err := d.webhookRepo.ClaimNext(ctx, d.cfg.LeaseDuration)
		if err != nil {
			d.log.Warn().Err(err).Int("worker", workerID).Msg("webhook claim failed")
			return
		}
		if event == nil {
			return
		}
		d.deliver(ctx, event)
	}
}

func (d *WebhookDispatcher) deliver(ctx context.Context, event *domain.WebhookEvent) {
	merchant, err := d.merchantRepo.GetByID(ctx, event.MerchantID)
	if err != nil {
		// Transient: release the claim and let a later attempt retry.
		d.settleOutcome(ctx, event, nil, fmt.Sprintf("merchant lookup failed: %v", err))
		return
	}
	if merchant == nil || !merchant.HasWebhook() {
		// The merchant dropped its URL after enqueue. Terminal.
		if err := d.webhookRepo.MarkFailed(ctx, event.ID, nil, "merchant has no webhook url"); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook mark failed errored")
		}
		return
	}

	body, err := json.Marshal(webhookEnvelope{
		Event:     event.Event,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
		Payload:   event.Payload,
	})
	if err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook envelope marshal failed")
		if err := d.webhookRepo.MarkFailed(ctx, event.ID, nil, "payload marshal failed"); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook mark failed errored")
		}
		return
	}

	secret := merchant.WebhookSecret
	if secret == "" {
		secret = d.cfg.SigningSecret
	}

	code, respBody, err := d.post(ctx, *merchant.WebhookURL, event.Event, secret, body)

	targetURL := *merchant.WebhookURL
	success := err == nil && code >= 200 && code < 300
	d.appendLog(ctx, event, targetURL, code, respBody, success, err)

	if success {
		if err := d.webhookRepo.MarkDelivered(ctx, event.ID, code, respBody); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook mark delivered errored")
			return
		}
		d.log.Info().
			Int64("event_id", event.ID).
			Str("event", event.Event).
			Int("attempt", event.Attempts).
			Int("status", code).
			Msg("webhook delivered")
		return
	}

	var codePtr *int
	if err == nil {
		codePtr = &code
	}
	if err != nil {
		respBody = err.Error()
	}
	d.settleOutcome(ctx, event, codePtr, respBody)
}

// settleOutcome reschedules a failed attempt or marks the event terminally
// failed once the attempt budget is spent. ClaimNext already counted the
// current attempt.
func (d *WebhookDispatcher) settleOutcome(ctx context.Context, event *domain.WebhookEvent, code *int, detail string) {
	detail = domain.TruncateResponseBody(detail)
	if event.Attempts >= d.cfg.MaxAttempts {
		if err := d.webhookRepo.MarkFailed(ctx, event.ID, code, detail); err != nil {
			d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook mark failed errored")
			return
		}
		d.log.Warn().
			Int64("event_id", event.ID).
			Str("event", event.Event).
			Int("attempts", event.Attempts).
			Msg("webhook failed permanently")
		return
	}
	next := time.Now().UTC().Add(domain.WebhookBackoff(event.Attempts))
	if err := d.webhookRepo.Reschedule(ctx, event.ID, next, code, detail); err != nil {
		d.log.Error().Err(err).Int64("event_id", event.ID).Msg("webhook reschedule errored")
		return
	}
	d.log.Warn().
		Int64("event_id", event.ID).
		Str("event", event.Event).
		Int("attempt", event.Attempts).
		Time("next_attempt_at", next).
		Msg("webhook attempt failed, rescheduled")
}

func (d *WebhookDispatcher) post(ctx context.Context, url, event, secret string, body []byte) (int, string, error) {
	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PayFlow-Signature", d.sigSvc.Sign(secret, body))
	req.Header.Set("X-PayFlow-Event", event)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	// Read a bounded slice of the response; logs truncate further.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, domain.TruncateResponseBody(string(raw)), nil
}

func (d *WebhookDispatcher) appendLog(ctx context.Context, event *domain.WebhookEvent, targetURL string, code int, respBody string, success bool, deliveryErr error) {
	var statusPtr *int
	if deliveryErr == nil {
		statusPtr = &code
	} else {
		respBody = deliveryErr.Error()
	}
	row := &domain.WebhookLog{
		ID:             uuid.New(),
		MerchantID:     event.MerchantID,
		EventID:        event.ID,
		Event:          event.Event,
		TargetURL:      targetURL,
		ResponseStatus: statusPtr,
		ResponseBody:   domain.TruncateResponseBody(respBody),
		Success:        success,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.logRepo.Create(ctx, row); err != nil {
		d.log.Warn().Err(err).Int64("event_id", event.ID).Msg("webhook log append failed")
	}
}
