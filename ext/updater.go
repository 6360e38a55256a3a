package ext

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/tgbot/internal/logger"
	"gitlab.com/yelinaung/tgbot/telegram"
)

const (
	// SecretTokenHeader carries the webhook secret token.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	defaultPollTimeout     = 10
	maxRetryInterval       = 30 * time.Second
	bootstrapRetryInterval = time.Second
	maxWebhookBody         = 10 << 20
	readHeaderTimeout      = 10 * time.Second
)

var secretTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// PollingOptions configure Updater.StartPolling.
type PollingOptions struct {
	// PollInterval is the pause between two getUpdates calls.
	PollInterval time.Duration
	// Timeout is the long polling timeout in seconds. 0 uses 10 seconds.
	Timeout int
	// BootstrapRetries is how often deleting the webhook is retried. A
	// negative value retries forever.
	BootstrapRetries   int
	AllowedUpdates     []string
	DropPendingUpdates bool
	// ErrorCallback receives getUpdates errors instead of the log.
	ErrorCallback func(error)
}

// WebhookOptions configure Updater.StartWebhook.
type WebhookOptions struct {
	// Listen is the address the server binds to. The default is 127.0.0.1.
	Listen string
	// Port is the port the server binds to; 0 picks a free one.
	Port    int
	URLPath string
	// WebhookURL is registered with Telegram. The default is derived from
	// Listen, the bound port and URLPath.
	WebhookURL         string
	SecretToken        string
	MaxConnections     int
	AllowedUpdates     []string
	DropPendingUpdates bool
	BootstrapRetries   int
	Certificate        *telegram.InputFile
	IPAddress          string
	// TLSCertFile and TLSKeyFile make the server serve HTTPS.
	TLSCertFile string
	TLSKeyFile  string
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
}

// Updater fetches updates by long polling or receives them on a webhook
// and puts them on an update queue.
type Updater struct {
	bot     *telegram.Bot
	queue   chan<- any
	log     zerolog.Logger
	metrics *Metrics

	mu       sync.Mutex
	running  bool
	webhook  bool
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	offset   int64
	server   *http.Server
	listener net.Listener
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithUpdaterLogger sets the logger of the updater.
func WithUpdaterLogger(l zerolog.Logger) UpdaterOption {
	return func(u *Updater) { u.log = l }
}

// WithUpdaterMetrics counts received updates in m.
func WithUpdaterMetrics(m *Metrics) UpdaterOption {
	return func(u *Updater) { u.metrics = m }
}

// NewUpdater returns an updater putting the updates of bot on queue.
func NewUpdater(bot *telegram.Bot, queue chan<- any, opts ...UpdaterOption) *Updater {
	u := &Updater{bot: bot, queue: queue, log: logger.Component("ext.updater")}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Running reports whether the updater is fetching updates.
func (u *Updater) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// Done is closed when the updater stops, either by Stop or after a fatal
// error reported by Err.
func (u *Updater) Done() <-chan struct{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done
}

// Err returns the error that stopped the updater, if any.
func (u *Updater) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// WebhookAddr returns the address the webhook server listens on, or "".
func (u *Updater) WebhookAddr() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.listener == nil {
		return ""
	}
	return u.listener.Addr().String()
}

// bootstrap runs fn with retries. Invalid tokens are never retried.
func (u *Updater) bootstrap(ctx context.Context, what string, retries int, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, telegram.ErrInvalidToken) || (retries >= 0 && attempt >= retries) {
			return fmt.Errorf("failed to %s: %w", what, err)
		}
		u.log.Warn().Err(err).Int("attempt", attempt+1).Msgf("Failed to %s, retrying", what)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bootstrapRetryInterval):
		}
	}
}

func (u *Updater) begin(webhook bool) (context.Context, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running {
		return nil, errors.New("ext: updater is already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.running = true
	u.webhook = webhook
	u.cancel = cancel
	u.done = make(chan struct{})
	u.err = nil
	return ctx, nil
}

func (u *Updater) abort() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.running = false
	u.cancel()
	close(u.done)
}

// fail records a fatal error. Stop is no longer needed afterwards.
func (u *Updater) fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.err = err
	u.running = false
	u.log.Error().Err(err).Msg("Updater stopped")
}

// StartPolling deletes any webhook and starts fetching updates with long
// polling in the background.
func (u *Updater) StartPolling(ctx context.Context, opts PollingOptions) error {
	pollCtx, err := u.begin(false)
	if err != nil {
		return err
	}
	err = u.bootstrap(ctx, "delete webhook", opts.BootstrapRetries, func(ctx context.Context) error {
		return u.bot.DeleteWebhook(ctx, opts.DropPendingUpdates)
	})
	if err != nil {
		u.abort()
		return err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	done := u.done
	go u.poll(pollCtx, opts, done)
	u.log.Info().Int("timeout", opts.Timeout).Msg("Polling for updates")
	return nil
}

func (u *Updater) poll(ctx context.Context, opts PollingOptions, done chan<- struct{}) {
	defer close(done)

	var retry time.Duration
	for ctx.Err() == nil {
		u.mu.Lock()
		offset := u.offset
		u.mu.Unlock()

		updates, err := u.bot.GetUpdates(ctx, &telegram.GetUpdatesRequest{
			Offset:         offset,
			Timeout:        opts.Timeout,
			AllowedUpdates: opts.AllowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, telegram.ErrInvalidToken) {
				u.fail(err)
				return
			}
			if errors.Is(err, telegram.ErrTimedOut) {
				continue
			}
			if opts.ErrorCallback != nil {
				opts.ErrorCallback(err)
			} else {
				u.log.Error().Err(err).Msg("Failed to get updates")
			}
			retry = min(max(time.Second, retry*3/2), maxRetryInterval)
			if !sleep(ctx, retry) {
				return
			}
			continue
		}
		retry = 0

		for i := range updates {
			up := &updates[i]
			select {
			case u.queue <- up:
			case <-ctx.Done():
				return
			}
			u.metrics.received(up.Type())
			u.mu.Lock()
			u.offset = up.UpdateID + 1
			u.mu.Unlock()
		}
		if opts.PollInterval > 0 && !sleep(ctx, opts.PollInterval) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// StartWebhook starts an HTTP server receiving updates and registers it
// with Telegram.
func (u *Updater) StartWebhook(ctx context.Context, opts WebhookOptions) error {
	if opts.SecretToken != "" && !secretTokenRegex.MatchString(opts.SecretToken) {
		return errors.New("ext: webhook secret token must be 1-256 characters of A-Z, a-z, 0-9, _ and -")
	}
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1"
	}
	path := "/" + strings.TrimPrefix(opts.URLPath, "/")

	if _, err := u.begin(true); err != nil {
		return err
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(opts.Listen, strconv.Itoa(opts.Port)))
	if err != nil {
		u.abort()
		return fmt.Errorf("failed to listen for webhook: %w", err)
	}

	webhookURL := opts.WebhookURL
	if webhookURL == "" {
		port := ln.Addr().(*net.TCPAddr).Port
		webhookURL = fmt.Sprintf("https://%s%s", net.JoinHostPort(opts.Listen, strconv.Itoa(port)), path)
	}
	err = u.bootstrap(ctx, "set webhook", opts.BootstrapRetries, func(ctx context.Context) error {
		return u.bot.SetWebhook(ctx, &telegram.SetWebhookRequest{
			URL:                webhookURL,
			Certificate:        opts.Certificate,
			IPAddress:          opts.IPAddress,
			MaxConnections:     opts.MaxConnections,
			AllowedUpdates:     opts.AllowedUpdates,
			DropPendingUpdates: opts.DropPendingUpdates,
			SecretToken:        opts.SecretToken,
		})
	})
	if err != nil {
		_ = ln.Close()
		u.abort()
		return err
	}

	srv := &http.Server{
		Handler:           u.webhookRouter(path, opts),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	u.mu.Lock()
	u.server = srv
	u.listener = ln
	done := u.done
	u.mu.Unlock()

	go func() {
		defer close(done)
		var err error
		if opts.TLSCertFile != "" {
			err = srv.ServeTLS(ln, opts.TLSCertFile, opts.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			u.fail(fmt.Errorf("webhook server failed: %w", err))
		}
	}()
	u.log.Info().Str("addr", ln.Addr().String()).Str("path", path).Msg("Webhook server listening")
	return nil
}

func (u *Updater) webhookRouter(path string, opts WebhookOptions) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}
	r.Post(path, u.handleWebhook(opts.SecretToken))
	return r
}

func (u *Updater) handleWebhook(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "application/json" {
			http.Error(w, "unsupported content type", http.StatusForbidden)
			return
		}
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretTokenHeader)), []byte(secret)) != 1 {
			u.log.Warn().Msg("Webhook request with invalid secret token")
			http.Error(w, "invalid secret token", http.StatusForbidden)
			return
		}

		var update telegram.Update
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
			u.log.Warn().Err(err).Msg("Failed to decode webhook update")
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		u.bot.ResolveCallbackData(&update)

		select {
		case u.queue <- &update:
		case <-r.Context().Done():
			http.Error(w, "queue full", http.StatusServiceUnavailable)
			return
		}
		u.metrics.received(update.Type())
		w.WriteHeader(http.StatusOK)
	}
}

// Stop stops fetching updates. After polling, the offset of the last
// update is confirmed so it is not delivered again; a webhook server is
// shut down gracefully. Stopping a stopped updater is a no-op.
func (u *Updater) Stop(ctx context.Context) error {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return nil
	}
	u.running = false
	webhook, cancel, done := u.webhook, u.cancel, u.done
	srv := u.server
	u.server, u.listener = nil, nil
	u.mu.Unlock()

	cancel()
	if webhook && srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down webhook server: %w", err)
		}
	}
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("failed to stop updater: %w", ctx.Err())
	}

	u.mu.Lock()
	offset := u.offset
	u.mu.Unlock()
	if !webhook && offset > 0 {
		_, err := u.bot.GetUpdates(ctx, &telegram.GetUpdatesRequest{Offset: offset, Limit: 1})
		if err != nil {
			return fmt.Errorf("failed to confirm update offset: %w", err)
		}
	}
	u.log.Info().Msg("Updater stopped")
	return nil
}
