package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

// EventRecord is the SQL row behind an Event. Payload keeps the event exactly as received.
type EventRecord struct {
	Seq       uint64         `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"id"`
	SessionID string         `gorm:"column:session_id;index" json:"session_id,omitempty"`
	Role      string         `gorm:"column:role" json:"role"`
	Phase     string         `gorm:"column:phase" json:"phase,omitempty"`
	Content   string         `gorm:"column:content" json:"content"`
	UploadURL string         `gorm:"column:upload_url" json:"upload_url,omitempty"`
	Timestamp time.Time      `gorm:"column:ts;index" json:"ts"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EventRecord) TableName() string { return "transcript_event" }

type GormSink struct {
	db  *gorm.DB
	log *logger.Logger
}

// OpenGorm connects to sqlite (dsn is a file path, or ":memory:") or postgres and migrates the table.
func OpenGorm(dialect string, dsn string, baseLog *logger.Logger) (*GormSink, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported transcript dialect %q", dialect)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect transcript db: %w", err)
	}
	return NewGormSink(db, baseLog)
}

func NewGormSink(db *gorm.DB, baseLog *logger.Logger) (*GormSink, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("repo", "TranscriptEventRepo")
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		log.Error("Auto migration failed for transcript_event", "error", err)
		return nil, err
	}
	return &GormSink{db: db, log: log}, nil
}

func (s *GormSink) Append(ctx context.Context, events ...Event) error {
	return s.Create(ctx, nil, events)
}

// Create inserts events inside tx, or on the sink's own handle when tx is nil.
func (s *GormSink) Create(ctx context.Context, tx *gorm.DB, events []Event) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	if len(events) == 0 {
		return nil
	}

	rows := make([]*EventRecord, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		rows = append(rows, &EventRecord{
			ID:        uuid.New(),
			SessionID: ev.SessionID,
			Role:      ev.Role,
			Phase:     ev.Phase,
			Content:   ev.Content,
			UploadURL: ev.UploadURL,
			Timestamp: ts,
			Payload:   datatypes.JSON(payload),
		})
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (s *GormSink) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		return []Event{}, nil
	}
	var rows []*EventRecord
	if err := s.db.WithContext(ctx).
		Order("seq DESC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, Event{
			Timestamp: r.Timestamp,
			SessionID: r.SessionID,
			Role:      r.Role,
			Content:   r.Content,
			Phase:     r.Phase,
			UploadURL: r.UploadURL,
		})
	}
	return out, nil
}

// BySession returns one session's events, oldest first.
func (s *GormSink) BySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*EventRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	var results []*EventRecord
	if strings.TrimSpace(sessionID) == "" {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
