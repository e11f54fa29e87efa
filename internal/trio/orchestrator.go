package trio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/domain"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/email"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/event"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/push"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/recovery"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/store"
)

// Config tunes the per-channel delivery behavior.
type Config struct {
	// EmailTimeout bounds a single email transport attempt.
	EmailTimeout time.Duration

	// EmailAttempts is the total number of email attempts before the
	// dispatch fails.
	EmailAttempts int

	// EmailBackoffBase is the delay before the second attempt; it doubles
	// for each further attempt.
	EmailBackoffBase time.Duration

	// PushAttempts is the per-recipient websocket emission attempt count.
	PushAttempts int

	// PushBackoffInitial seeds the per-recipient retry backoff.
	PushBackoffInitial time.Duration
}

// DefaultConfig returns production delivery settings.
func DefaultConfig() Config {
	return Config{
		EmailTimeout:       10 * time.Second,
		EmailAttempts:      3,
		EmailBackoffBase:   time.Second,
		PushAttempts:       3,
		PushBackoffInitial: 250 * time.Millisecond,
	}
}

// ConfigForEnvironment scales retry delays down in test environments so
// failure paths stay fast.
func ConfigForEnvironment(environment string) Config {
	cfg := DefaultConfig()
	if environment == "test" {
		cfg.EmailBackoffBase = 100 * time.Millisecond
		cfg.PushBackoffInitial = 10 * time.Millisecond
	}
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EmailTimeout <= 0 {
		c.EmailTimeout = def.EmailTimeout
	}
	if c.EmailAttempts <= 0 {
		c.EmailAttempts = def.EmailAttempts
	}
	if c.EmailBackoffBase <= 0 {
		c.EmailBackoffBase = def.EmailBackoffBase
	}
	if c.PushAttempts <= 0 {
		c.PushAttempts = def.PushAttempts
	}
	if c.PushBackoffInitial <= 0 {
		c.PushBackoffInitial = def.PushBackoffInitial
	}
	return c
}

// EmailSpec describes the email leg of a dispatch. A nil spec on the request
// skips the email channel entirely.
type EmailSpec struct {
	To         string         `json:"to" validate:"required,email"`
	TemplateID string         `json:"template_id" validate:"required"`
	Data       map[string]any `json:"data,omitempty"`
	Priority   string         `json:"priority,omitempty"`
}

// MessageSpec describes the durable system message to create.
type MessageSpec struct {
	Title    string         `json:"title" validate:"required"`
	Content  string         `json:"content" validate:"required"`
	Type     string         `json:"type,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Creator  string         `json:"creator,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Options controls dispatch behavior. A nil Options on the request means
// rollback is enabled.
type Options struct {
	EnableRollback bool `json:"enable_rollback"`
}

// Request is one trio dispatch: email, durable message, websocket fanout.
type Request struct {
	Email      *EmailSpec  `json:"email,omitempty"`
	Message    MessageSpec `json:"message"`
	Recipients []string    `json:"recipients,omitempty"`
	Options    *Options    `json:"options,omitempty"`
}

func (r Request) options() Options {
	if r.Options == nil {
		return Options{EnableRollback: true}
	}
	return *r.Options
}

// Result is the structured outcome of a dispatch. It is always returned,
// success or failure; failures never surface as a plain error to the caller.
type Result struct {
	Success           bool             `json:"success"`
	TransactionID     string           `json:"transaction_id"`
	MessageID         string           `json:"message_id,omitempty"`
	EmailID           string           `json:"email_id,omitempty"`
	EmailSent         bool             `json:"email_sent"`
	NotificationsSent int              `json:"notifications_sent"`
	RollbackCompleted bool             `json:"rollback_completed"`
	Error             string           `json:"error,omitempty"`
	Recovery          *recovery.Result `json:"recovery,omitempty"`
	Metrics           CallMetrics      `json:"metrics"`
}

// Deps are the orchestrator's collaborators. Email, Messages and Push are
// required; the rest default to in-process implementations when nil.
type Deps struct {
	Email    email.Sender
	Messages store.MessageRepository
	Push     push.Emitter
	Recovery *recovery.Handler
	Registry *Registry
	Events   *event.Producer
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Orchestrator runs trio dispatches: it sequences the three channels inside
// a transaction, rolls back completed work when a later channel fails, and
// hands every failure to the recovery handler.
type Orchestrator struct {
	cfg      Config
	email    email.Sender
	messages store.MessageRepository
	push     push.Emitter
	recovery *recovery.Handler
	registry *Registry
	events   *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
}

// NewOrchestrator wires an orchestrator from its dependencies.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Recovery == nil {
		deps.Recovery = recovery.NewHandler(recovery.NewMemoryQueue(), deps.Logger)
	}
	if deps.Events == nil {
		deps.Events = event.NewProducer(nil, deps.Logger)
	}

	return &Orchestrator{
		cfg:      cfg,
		email:    deps.Email,
		messages: deps.Messages,
		push:     deps.Push,
		recovery: deps.Recovery,
		registry: deps.Registry,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Registry exposes the transaction registry for read endpoints.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Metrics exposes the engine metrics for read and reset endpoints.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Recovery exposes the recovery handler for read endpoints.
func (o *Orchestrator) Recovery() *recovery.Handler {
	return o.recovery
}

// CreateTrio dispatches one notification across all three channels in order:
// email, durable message, websocket fanout. The first channel failure aborts
// the remaining channels and triggers rollback of the completed ones unless
// the request disables it.
func (o *Orchestrator) CreateTrio(ctx context.Context, req Request) Result {
	start := time.Now()
	o.metrics.recordRequest()

	tx := NewTransaction()
	o.registry.RegisterTransaction(tx)

	opts := req.options()
	res := Result{TransactionID: tx.ID()}
	var call CallMetrics

	if err := validateRequest(req); err != nil {
		return o.failTrio(ctx, tx, err, opts, &res, &call, start)
	}

	if req.Email != nil {
		stepStart := time.Now()
		err := o.sendEmail(ctx, req.Email)
		call.EmailDuration = time.Since(stepStart)
		if err != nil {
			return o.failTrio(ctx, tx, err, opts, &res, &call, start)
		}
		res.EmailSent = true

		opID := "email-" + uuid.NewString()
		res.EmailID = opID
		_ = tx.AddOperation(ChannelEmail, opID, func(context.Context) error {
			// A delivered email cannot be withdrawn; the undo records that
			// the send is orphaned relative to the aborted dispatch.
			o.logger.Warn("email from aborted dispatch cannot be withdrawn",
				"operation_id", opID,
				"transaction_id", tx.ID(),
			)
			return nil
		})
	}

	stepStart := time.Now()
	msg, err := o.createMessage(ctx, req.Message)
	call.MessageDuration = time.Since(stepStart)
	if err != nil {
		return o.failTrio(ctx, tx, err, opts, &res, &call, start)
	}
	res.MessageID = msg.ID
	_ = tx.AddOperation(ChannelMessage, msg.ID, func(undoCtx context.Context) error {
		return o.messages.MarkInactive(undoCtx, msg.ID)
	})

	if len(req.Recipients) > 0 {
		stepStart = time.Now()
		sent, pushErr := o.fanout(ctx, tx, req.Recipients, msg)
		call.PushDuration = time.Since(stepStart)
		res.NotificationsSent = sent
		if pushErr != nil {
			return o.failTrio(ctx, tx, pushErr, opts, &res, &call, start)
		}
	}

	if err := tx.Commit(); err != nil {
		return o.failTrio(ctx, tx, err, opts, &res, &call, start)
	}
	o.registry.CompleteTransaction(tx)

	call.TotalDuration = time.Since(start)
	res.Metrics = call
	res.Success = true
	o.metrics.recordSuccess(call)

	if err := o.events.PublishTrioCompleted(ctx, event.TrioCompletedData{
		TransactionID:     tx.ID(),
		MessageID:         msg.ID,
		EmailSent:         res.EmailSent,
		NotificationsSent: res.NotificationsSent,
		DurationMs:        call.TotalDuration.Milliseconds(),
	}); err != nil {
		o.logger.Warn("trio completed event publish failed", "error", err)
	}

	o.logger.Info("trio committed",
		"transaction_id", tx.ID(),
		"message_id", msg.ID,
		"email_sent", res.EmailSent,
		"notifications_sent", res.NotificationsSent,
		"duration", call.TotalDuration,
	)
	return res
}

// failTrio finishes a dispatch on its failure path: recovery handling,
// rollback (or a terminal failed state when rollback is disabled), registry
// completion, metrics and the failure event. Rollback errors are logged and
// absorbed; the caller still gets a structured result.
func (o *Orchestrator) failTrio(ctx context.Context, tx *Transaction, cause error, opts Options, res *Result, call *CallMetrics, start time.Time) Result {
	d := recovery.Classify(cause)
	o.logger.Error("trio dispatch failed",
		"transaction_id", tx.ID(),
		"error", cause,
		"error_type", string(d.Type),
		"severity", string(d.Severity),
	)

	rec := o.recovery.HandleTrioFailure(ctx, cause, recovery.FailureContext{TransactionID: tx.ID()})
	res.Recovery = &rec

	if opts.EnableRollback {
		if err := tx.Rollback(ctx); err != nil {
			o.logger.Error("rollback failed",
				"transaction_id", tx.ID(),
				"error", err,
			)
		} else {
			res.RollbackCompleted = true
		}
	} else {
		tx.fail(cause)
	}
	o.registry.CompleteTransaction(tx)

	call.TotalDuration = time.Since(start)
	res.Metrics = *call
	res.Error = cause.Error()
	o.metrics.recordFailure(string(d.Type), res.RollbackCompleted, *call)

	if err := o.events.PublishTrioFailed(ctx, event.TrioFailedData{
		TransactionID:     tx.ID(),
		Error:             res.Error,
		RecoveryAction:    string(rec.Action),
		RollbackCompleted: res.RollbackCompleted,
	}); err != nil {
		o.logger.Warn("trio failed event publish failed", "error", err)
	}
	return *res
}

func validateRequest(req Request) error {
	m := req.Message
	if strings.TrimSpace(m.Title) == "" || strings.TrimSpace(m.Content) == "" {
		return invalidRequest("message title and content are required")
	}
	if m.Type != "" && !domain.IsValidMessageType(m.Type) {
		return invalidRequest(fmt.Sprintf("unknown message type %q", m.Type))
	}
	if m.Priority != "" && !domain.IsValidMessagePriority(m.Priority) {
		return invalidRequest(fmt.Sprintf("unknown message priority %q", m.Priority))
	}
	if req.Email != nil && strings.TrimSpace(req.Email.To) == "" {
		return invalidRequest("email recipient is required")
	}
	return nil
}

func invalidRequest(detail string) error {
	return &recovery.ChannelError{
		Hint: recovery.Hint{Type: recovery.TypeValidation, Service: "validation"},
		Err:  fmt.Errorf("invalid request: %s", detail),
	}
}

// sendEmail renders the template and pushes the message through the
// transport with bounded attempts. Template problems are caller errors and
// fail fast without touching the transport.
func (o *Orchestrator) sendEmail(ctx context.Context, spec *EmailSpec) error {
	tmpl, err := email.Resolve(spec.TemplateID)
	if err != nil {
		return &recovery.ChannelError{
			Hint: recovery.Hint{Type: recovery.TypeValidation, Service: "email-service"},
			Err:  fmt.Errorf("unknown email template %q", spec.TemplateID),
		}
	}

	subject, body, err := tmpl.Render(spec.Data)
	if err != nil {
		return &recovery.ChannelError{
			Hint: recovery.Hint{Type: recovery.TypeValidation, Service: "email-service"},
			Err:  fmt.Errorf("email template %q render: %w", spec.TemplateID, err),
		}
	}

	msg := &email.Message{
		To:       spec.To,
		Subject:  subject,
		Body:     body,
		Priority: spec.Priority,
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.EmailAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.EmailTimeout)
		err := o.email.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			if attempt > 1 {
				o.logger.Info("email sent after retry", "attempt", attempt, "to", spec.To)
			}
			return nil
		}
		lastErr = err
		o.logger.Warn("email attempt failed",
			"attempt", attempt,
			"max_attempts", o.cfg.EmailAttempts,
			"error", err,
		)

		if attempt < o.cfg.EmailAttempts {
			delay := o.cfg.EmailBackoffBase << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return &recovery.ChannelError{
					Hint: recovery.Hint{Type: recovery.TypeEmailService, Service: "email-service"},
					Err:  fmt.Errorf("email send aborted: %w", ctx.Err()),
				}
			}
		}
	}

	// Exhausting every attempt escalates the severity above the keyword
	// default for email failures.
	return &recovery.ChannelError{
		Hint: recovery.Hint{
			Type:     recovery.TypeEmailService,
			Service:  "email-service",
			Severity: recovery.SeverityHigh,
		},
		Err: fmt.Errorf("Email failed after %d attempts: %w", o.cfg.EmailAttempts, lastErr),
	}
}

func (o *Orchestrator) createMessage(ctx context.Context, spec MessageSpec) (*domain.SystemMessage, error) {
	now := time.Now().UTC()
	msg := &domain.SystemMessage{
		ID:        uuid.NewString(),
		Title:     spec.Title,
		Content:   spec.Content,
		Type:      spec.Type,
		Priority:  spec.Priority,
		Metadata:  spec.Metadata,
		Creator:   spec.Creator,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if msg.Type == "" {
		msg.Type = domain.MessageTypeAnnouncement
	}
	if msg.Priority == "" {
		msg.Priority = domain.MessagePriorityMedium
	}

	if err := o.messages.Create(ctx, msg); err != nil {
		return nil, &recovery.ChannelError{
			Hint: recovery.Hint{Type: recovery.TypeDatabase, Service: "database"},
			Err:  fmt.Errorf("System message creation failed: %w", err),
		}
	}
	return msg, nil
}

// fanout emits the message to every recipient concurrently, retrying each
// recipient independently. Partial delivery is a success; the dispatch fails
// only when no recipient could be reached.
func (o *Orchestrator) fanout(ctx context.Context, tx *Transaction, recipients []string, msg *domain.SystemMessage) (int, error) {
	payload := map[string]any{
		"event":   "system_message",
		"message": msg,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, recipientID := range recipients {
		wg.Add(1)
		go func(recipientID string) {
			defer wg.Done()

			if err := o.emitWithRetry(ctx, recipientID, payload); err != nil {
				o.logger.Warn("websocket emission failed",
					"recipient_id", recipientID,
					"transaction_id", tx.ID(),
					"error", err,
				)
				return
			}

			_ = tx.AddOperation(ChannelWebsocket, "push-"+recipientID, func(context.Context) error {
				// Delivered frames cannot be recalled from clients.
				o.logger.Warn("websocket emission from aborted dispatch cannot be withdrawn",
					"recipient_id", recipientID,
					"transaction_id", tx.ID(),
				)
				return nil
			})

			mu.Lock()
			sent++
			mu.Unlock()
		}(recipientID)
	}
	wg.Wait()

	if sent == 0 {
		return 0, &recovery.ChannelError{
			Hint: recovery.Hint{Type: recovery.TypeWebsocket, Service: "websocket"},
			Err:  fmt.Errorf("All WebSocket emissions failed for %d recipients", len(recipients)),
		}
	}
	return sent, nil
}

func (o *Orchestrator) emitWithRetry(ctx context.Context, recipientID string, payload any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.PushBackoffInitial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, o.push.Emit(ctx, recipientID, payload)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(o.cfg.PushAttempts)))
	return err
}
