// Package service runs one conversation turn end to end: scoring,
// extraction, persona reply, reporting and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"honeypot/internal/analytics"
	"honeypot/internal/classifier"
	"honeypot/internal/extractor"
	"honeypot/internal/llm"
	"honeypot/internal/models"
	"honeypot/internal/policy"
	"honeypot/internal/reporter"
	"honeypot/internal/session"
)

// ReplyGenerator produces a persona reply with a generative model.
type ReplyGenerator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (string, error)
}

// Reporter delivers the report for a session and tells whether the
// receiver confirmed it.
type Reporter interface {
	Report(ctx context.Context, p reporter.Payload) bool
}

// Repository is the durable store behind the in-memory sessions.
type Repository interface {
	SaveSession(ctx context.Context, s models.Session) error
	AppendMessage(ctx context.Context, sessionID string, msg models.Message) error
	SaveIntelligence(ctx context.Context, sessionID string, rec models.IntelligenceRecord) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	GetIntelligence(ctx context.Context, sessionID string) (models.IntelligenceRecord, error)
	Ping(ctx context.Context) error
}

// EventSink records one analytics event per turn.
type EventSink interface {
	Record(e analytics.Event) error
}

// Config tunes the collaborator calls of a turn.
type Config struct {
	SystemPrompt    string
	GenerateTimeout time.Duration
	ReportTimeout   time.Duration
	PersistTimeout  time.Duration
}

// Dependencies of a Honeypot. Store and Classifier are required; every
// other collaborator is optional.
type Dependencies struct {
	Store      *session.Store
	Classifier *classifier.Classifier
	Extractor  *extractor.Extractor
	Generator  ReplyGenerator
	Reporter   Reporter
	Repository Repository
	Events     EventSink
}

// Honeypot handles conversation turns.
type Honeypot struct {
	store      *session.Store
	classifier *classifier.Classifier
	extractor  *extractor.Extractor
	generator  ReplyGenerator
	reporter   Reporter
	repo       Repository
	events     EventSink
	cfg        Config
	logger     *zap.Logger
}

func NewHoneypot(deps Dependencies, cfg Config, logger *zap.Logger) *Honeypot {
	if deps.Extractor == nil {
		deps.Extractor = extractor.New()
	}
	if cfg.GenerateTimeout == 0 {
		cfg.GenerateTimeout = 10 * time.Second
	}
	if cfg.ReportTimeout == 0 {
		cfg.ReportTimeout = 5 * time.Second
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &Honeypot{
		store:      deps.Store,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		generator:  deps.Generator,
		reporter:   deps.Reporter,
		repo:       deps.Repository,
		events:     deps.Events,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessTurn handles one inbound message. Only invalid input and
// internal store failures return an error; collaborator failures degrade
// to fallbacks and are logged.
func (h *Honeypot) ProcessTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	meta := models.Metadata{}
	if req.Metadata != nil {
		meta = *req.Metadata
	}

	release, err := h.store.Acquire(ctx, id, meta.WithDefaults())
	if err != nil {
		return nil, err
	}
	defer release()

	t := &turn{id: id, text: req.Message.Text, language: meta.Language}
	if err := h.run(ctx, t, req); err != nil {
		return nil, fmt.Errorf("turn %s: %w", id, err)
	}

	h.persist(ctx, t)
	h.recordEvent(t)

	return &models.TurnResponse{
		Status:                "success",
		SessionID:             id,
		Reply:                 t.reply,
		ScamDetected:          t.result.IsScam,
		Confidence:            t.result.Confidence,
		RiskTier:              t.result.RiskTier,
		ExtractedIntelligence: t.final.CumulativeIntelligence,
		MessageCount:          t.final.MessageCount,
		CallbackSent:          t.callbackSent,
		ShouldContinue:        policy.ShouldContinue(t.text, t.final.MessageCount),
	}, nil
}

// turn collects what one ProcessTurn call produced.
type turn struct {
	id           string
	text         string
	language     string
	result       models.ClassificationResult
	reply        string
	appended     []models.Message
	callbackSent bool
	final        models.Session
}

func (h *Honeypot) run(ctx context.Context, t *turn, req models.TurnRequest) error {
	snap, err := h.store.Get(t.id)
	if err != nil {
		return err
	}

	// A fresh session adopts the history the caller already holds.
	if len(snap.Messages) == 0 {
		for _, msg := range req.ConversationHistory {
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if err := h.append(t, msg); err != nil {
				return err
			}
		}
		if snap, err = h.store.Get(t.id); err != nil {
			return err
		}
	}
	turnCount := snap.CounterpartyTurns()
	history := snap.Messages

	current := models.Message{Sender: models.SenderCounterparty, Text: t.text, Timestamp: req.Message.Timestamp}
	if err := h.append(t, current); err != nil {
		return err
	}

	t.result = h.classifier.Classify(t.text)
	if err := h.store.SetLatestClassification(t.id, t.result); err != nil {
		return err
	}

	if snap, err = h.store.Get(t.id); err != nil {
		return err
	}
	if err := h.store.MergeIntelligence(t.id, h.extractor.Extract(snap.Messages)); err != nil {
		return err
	}

	t.reply = h.generateReply(ctx, turnCount, t.text, history, t.language)
	reply := models.Message{Sender: models.SenderAgent, Text: t.reply, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := h.append(t, reply); err != nil {
		return err
	}

	if snap, err = h.store.Get(t.id); err != nil {
		return err
	}
	if t.result.IsScam {
		notes := fmt.Sprintf("Scam detected with confidence %.2f%%. Tactics: %s",
			t.result.Confidence*100, extractor.Summarize(snap.CumulativeIntelligence))
		if err := h.store.SetNotes(t.id, notes); err != nil {
			return err
		}
		if snap, err = h.store.Get(t.id); err != nil {
			return err
		}
	}

	if h.reporter != nil && policy.ShouldEmit(snap) {
		rctx, cancel := context.WithTimeout(ctx, h.cfg.ReportTimeout)
		t.callbackSent = h.reporter.Report(rctx, reporter.NewPayload(snap))
		cancel()
		if t.callbackSent {
			if err := h.store.MarkEmitted(t.id); err != nil {
				return err
			}
			h.logger.Info("Session reported",
				zap.String("session_id", t.id),
				zap.Int("message_count", snap.MessageCount))
		}
	}

	t.final, err = h.store.Get(t.id)
	return err
}

func (h *Honeypot) append(t *turn, msg models.Message) error {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := h.store.AppendMessage(t.id, msg.Sender, msg.Text, msg.Timestamp); err != nil {
		return err
	}
	t.appended = append(t.appended, msg)
	return nil
}

func (h *Honeypot) generateReply(ctx context.Context, turnCount int, text string, history []models.Message, language string) string {
	if h.generator == nil {
		return policy.NextReply(turnCount, text)
	}

	gctx, cancel := context.WithTimeout(ctx, h.cfg.GenerateTimeout)
	defer cancel()

	reply, err := h.generator.Generate(gctx, models.GenerateRequest{
		SystemPrompt: h.cfg.SystemPrompt,
		History:      history,
		Current:      text,
		Language:     llm.ResolveLanguage(text, language),
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		h.logger.Warn("Reply generation failed, using scripted reply",
			zap.Int("turn_count", turnCount),
			zap.Error(err))
		return policy.NextReply(turnCount, text)
	}
	return reply
}

func (h *Honeypot) persist(ctx context.Context, t *turn) {
	if h.repo == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.PersistTimeout)
	defer cancel()

	logErr := func(op string, err error) {
		h.logger.Error("Failed to persist turn",
			zap.String("op", op),
			zap.String("session_id", t.id),
			zap.Error(err))
	}

	if err := h.repo.SaveSession(pctx, t.final); err != nil {
		logErr("save_session", err)
		return
	}
	for _, msg := range t.appended {
		if err := h.repo.AppendMessage(pctx, t.id, msg); err != nil {
			logErr("append_message", err)
			return
		}
	}
	if err := h.repo.SaveIntelligence(pctx, t.id, t.final.CumulativeIntelligence); err != nil {
		logErr("save_intelligence", err)
	}
}

func (h *Honeypot) recordEvent(t *turn) {
	if h.events == nil {
		return
	}
	err := h.events.Record(analytics.Event{
		Timestamp:    time.Now(),
		SessionID:    t.id,
		SenderText:   t.text,
		AgentReply:   t.reply,
		ScamDetected: t.result.IsScam,
		Confidence:   t.result.Confidence,
		MessageCount: t.final.MessageCount,
		CallbackSent: t.callbackSent,
		Intelligence: t.final.CumulativeIntelligence,
		Metadata:     t.final.Metadata,
	})
	if err != nil {
		h.logger.Error("Failed to record analytics event", zap.String("session_id", t.id), zap.Error(err))
	}
}

// Classify scores a single text without touching any session.
func (h *Honeypot) Classify(text string) models.ClassificationResult {
	return h.classifier.Classify(text)
}

// Session returns the live session, falling back to the durable store for
// sessions no longer held in memory.
func (h *Honeypot) Session(ctx context.Context, id string) (models.Session, error) {
	s, err := h.store.Get(id)
	if err == nil || h.repo == nil || !errors.Is(err, models.ErrNotFound) {
		return s, err
	}
	return h.repo.GetSession(ctx, id)
}

// Intelligence returns what has been recorded for a session, preferring
// the durable store.
func (h *Honeypot) Intelligence(ctx context.Context, id string) (models.IntelligenceRecord, error) {
	if h.repo == nil {
		s, err := h.store.Get(id)
		if err != nil {
			return models.IntelligenceRecord{}, err
		}
		return s.CumulativeIntelligence, nil
	}
	if _, err := h.repo.GetSession(ctx, id); err != nil {
		return models.IntelligenceRecord{}, err
	}
	return h.repo.GetIntelligence(ctx, id)
}

// Ping checks the durable store, if any.
func (h *Honeypot) Ping(ctx context.Context) error {
	if h.repo == nil {
		return nil
	}
	return h.repo.Ping(ctx)
}
