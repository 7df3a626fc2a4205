package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"honeypot/internal/models"
)

// TextCodec transforms message text on its way to and from storage.
type TextCodec interface {
	Seal(sessionID, text string) (string, error)
	Open(sessionID, stored string) (string, error)
}

type plainText struct{}

func (plainText) Seal(_, text string) (string, error)   { return text, nil }
func (plainText) Open(_, stored string) (string, error) { return stored, nil }

// SessionRepository stores session snapshots, the message log and the
// intelligence relation. Every returned error wraps models.ErrPersistence
// or models.ErrNotFound.
type SessionRepository struct {
	db     *sqlx.DB
	codec  TextCodec
	logger *zap.Logger
}

// NewSessionRepository returns a repository on db. A nil codec stores
// message text as is.
func NewSessionRepository(db *sqlx.DB, codec TextCodec, logger *zap.Logger) *SessionRepository {
	if codec == nil {
		codec = plainText{}
	}
	return &SessionRepository{db: db, codec: codec, logger: logger}
}

type sessionRow struct {
	SessionID    string    `db:"session_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	MetadataJSON string    `db:"metadata_json"`
	ScamDetected bool      `db:"scam_detected"`
	Confidence   float64   `db:"confidence"`
	RiskTier     string    `db:"risk_tier"`
	AgentNotes   string    `db:"agent_notes"`
	MessageCount int       `db:"message_count"`
	Emitted      bool      `db:"emitted"`
}

type intelligenceRow struct {
	Kind  string `db:"kind"`
	Value string `db:"value"`
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrPersistence, op, err)
}

// SaveSession upserts the session snapshot. Messages and intelligence are
// written separately.
func (r *SessionRepository) SaveSession(ctx context.Context, s models.Session) error {
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return persistenceError("marshal metadata", err)
	}

	query := r.db.Rebind(`
		INSERT INTO sessions (session_id, created_at, updated_at, metadata_json, scam_detected,
		                      confidence, risk_tier, agent_notes, message_count, emitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			updated_at    = excluded.updated_at,
			metadata_json = excluded.metadata_json,
			scam_detected = excluded.scam_detected,
			confidence    = excluded.confidence,
			risk_tier     = excluded.risk_tier,
			agent_notes   = excluded.agent_notes,
			message_count = excluded.message_count,
			emitted       = excluded.emitted`)

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.CreatedAt.UTC(), s.UpdatedAt.UTC(), string(meta),
		s.LatestClassification.IsScam, s.LatestClassification.Confidence,
		string(s.LatestClassification.RiskTier), s.Notes, s.MessageCount, s.Emitted)
	if err != nil {
		return persistenceError("save session", err)
	}
	return nil
}

// AppendMessage adds msg to the session's append-only log.
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID string, msg models.Message) error {
	text, err := r.codec.Seal(sessionID, msg.Text)
	if err != nil {
		return persistenceError("seal message", err)
	}

	query := r.db.Rebind(`INSERT INTO messages (session_id, sender, text, timestamp) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, sessionID, string(msg.Sender), text, msg.Timestamp); err != nil {
		return persistenceError("append message", err)
	}
	return nil
}

// GetMessages returns the log in insertion order.
func (r *SessionRepository) GetMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var rows []models.Message
	query := r.db.Rebind(`SELECT sender, text, timestamp FROM messages WHERE session_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, persistenceError("get messages", err)
	}

	for i := range rows {
		text, err := r.codec.Open(sessionID, rows[i].Text)
		if err != nil {
			return nil, persistenceError("open message", err)
		}
		rows[i].Text = text
	}
	if rows == nil {
		rows = []models.Message{}
	}
	return rows, nil
}

// SaveIntelligence inserts every item of rec, ignoring ones already
// stored for the session.
func (r *SessionRepository) SaveIntelligence(ctx context.Context, sessionID string, rec models.IntelligenceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO intelligence (session_id, kind, value, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, kind, value) DO NOTHING`))
	if err != nil {
		return persistenceError("prepare intelligence insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range rec.Items() {
		value := item.Value
		if item.Kind == models.KindTactic {
			value, err = encodeTactic(item.Value)
			if err != nil {
				return persistenceError("encode tactic", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, item.Kind, value, now); err != nil {
			return persistenceError("insert intelligence", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistenceError("commit intelligence", err)
	}
	return nil
}

// GetIntelligence rebuilds the record stored for a session.
func (r *SessionRepository) GetIntelligence(ctx context.Context, sessionID string) (models.IntelligenceRecord, error) {
	var rows []intelligenceRow
	query := r.db.Rebind(`SELECT kind, value FROM intelligence WHERE session_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return models.IntelligenceRecord{}, persistenceError("get intelligence", err)
	}

	rec := models.NewIntelligenceRecord()
	for _, row := range rows {
		switch row.Kind {
		case models.KindBankAccount:
			rec.BankAccounts = append(rec.BankAccounts, row.Value)
		case models.KindUPIID:
			rec.UPIIDs = append(rec.UPIIDs, row.Value)
		case models.KindPhishingLink:
			rec.PhishingLinks = append(rec.PhishingLinks, row.Value)
		case models.KindPhoneNumber:
			rec.PhoneNumbers = append(rec.PhoneNumbers, row.Value)
		case models.KindEmail:
			rec.Emails = append(rec.Emails, row.Value)
		case models.KindSuspiciousKeyword:
			rec.SuspiciousKeywords = append(rec.SuspiciousKeywords, row.Value)
		case models.KindTactic:
			var t models.Tactic
			if err := json.Unmarshal([]byte(row.Value), &t); err != nil {
				r.logger.Warn("Skipping malformed tactic row",
					zap.String("session_id", sessionID),
					zap.String("value", row.Value))
				continue
			}
			rec.Tactics = append(rec.Tactics, t)
		}
	}
	// Normalizes ordering and the one-tactic-per-category rule.
	return models.NewIntelligenceRecord().Merge(rec), nil
}

// GetSession loads a stored snapshot with its messages and intelligence.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var row sessionRow
	query := r.db.Rebind(`
		SELECT session_id, created_at, updated_at, metadata_json, scam_detected,
		       confidence, risk_tier, agent_notes, message_count, emitted
		FROM sessions WHERE session_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, fmt.Errorf("%w: session %s", models.ErrNotFound, sessionID)
		}
		return models.Session{}, persistenceError("get session", err)
	}

	var meta models.Metadata
	if err := json.Unmarshal([]byte(row.MetadataJSON), &meta); err != nil {
		r.logger.Warn("Malformed session metadata", zap.String("session_id", sessionID), zap.Error(err))
	}

	messages, err := r.GetMessages(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	intel, err := r.GetIntelligence(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}

	return models.Session{
		ID:        row.SessionID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Messages:  messages,
		LatestClassification: models.ClassificationResult{
			IsScam:          row.ScamDetected,
			Confidence:      row.Confidence,
			RiskTier:        models.RiskTier(row.RiskTier),
			MatchedKeywords: []string{},
		},
		CumulativeIntelligence: intel,
		Notes:                  row.AgentNotes,
		MessageCount:           row.MessageCount,
		Emitted:                row.Emitted,
		Metadata:               meta.WithDefaults(),
	}, nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

func (r *SessionRepository) Close() error {
	return r.db.Close()
}

// encodeTactic turns the "category:keyword" item form into the stored JSON.
func encodeTactic(item string) (string, error) {
	category, keyword, _ := strings.Cut(item, ":")
	data, err := json.Marshal(models.Tactic{Category: category, Keyword: keyword})
	return string(data), err
}
