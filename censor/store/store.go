// Package store persists audit log entries, sensitive words and blacklisted
// identifiers with gorm, on sqlite or postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aiocensor/aiocensor/censor"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

type AuditLogFilter struct {
	// unix seconds, inclusive; zero means unbounded
	Start int64
	End   int64
	// empty means any
	Source string
	Risk   *censor.RiskLevel
	Limit  int
	Offset int
}

// AuditLogEntry is a persisted result together with entry-level metadata.
type AuditLogEntry struct {
	ID        string         `json:"id"`
	Result    censor.Result  `json:"result"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type AuditLogStore interface {
	AddAuditLog(ctx context.Context, res *censor.Result, extra map[string]any) (string, error)
	GetAuditLog(ctx context.Context, id string) (*AuditLogEntry, error)
	ListAuditLogs(ctx context.Context, f AuditLogFilter) ([]AuditLogEntry, error)
	CountAuditLogs(ctx context.Context, f AuditLogFilter) (int64, error)
	DeleteAuditLog(ctx context.Context, id string) error
}

type SensitiveWordStore interface {
	AddSensitiveWord(ctx context.Context, word string) (string, error)
	ListSensitiveWords(ctx context.Context, limit, offset int) ([]SensitiveWord, error)
	CountSensitiveWords(ctx context.Context) (int64, error)
	DeleteSensitiveWord(ctx context.Context, id string) error
	AllSensitiveWords(ctx context.Context) ([]string, error)
}

type BlacklistStore interface {
	AddBlacklist(ctx context.Context, identifier, reason string) (string, error)
	ListBlacklist(ctx context.Context, limit, offset int) ([]BlacklistEntry, error)
	CountBlacklist(ctx context.Context) (int64, error)
	SearchBlacklist(ctx context.Context, query string, limit, offset int) ([]BlacklistEntry, error)
	DeleteBlacklist(ctx context.Context, id string) error
	AllBlacklist(ctx context.Context) ([]string, error)
}

// Store implements every store interface over one shared connection pool.
type Store struct {
	db *gorm.DB
}

var (
	_ AuditLogStore      = (*Store)(nil)
	_ SensitiveWordStore = (*Store)(nil)
	_ BlacklistStore     = (*Store)(nil)
)

const defaultLimit = 100

// New migrates the schema and wraps db.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&AuditLog{}, &SensitiveWord{}, &BlacklistEntry{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Open connects with SetupDatabase and migrates the schema.
func Open(dburl string, maxConnections int) (*Store, error) {
	db, err := SetupDatabase(dburl, maxConnections)
	if err != nil {
		return nil, err
	}
	return New(db)
}

func (s *Store) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func encodeExtra(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeExtra(s *string) (map[string]any, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) AddAuditLog(ctx context.Context, res *censor.Result, extra map[string]any) (string, error) {
	reason, err := json.Marshal(res.Reason)
	if err != nil {
		return "", err
	}
	resultExtra, err := encodeExtra(res.Extra)
	if err != nil {
		return "", fmt.Errorf("encoding result extra: %w", err)
	}
	entryExtra, err := encodeExtra(extra)
	if err != nil {
		return "", fmt.Errorf("encoding entry extra: %w", err)
	}

	row := AuditLog{
		ID:               uuid.NewString(),
		Content:          res.Message.Content,
		Source:           res.Message.Source,
		MessageTimestamp: res.Message.Timestamp,
		RiskLevel:        int(res.Risk),
		Reason:           string(reason),
		ResultExtra:      resultExtra,
		EntryExtra:       entryExtra,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("adding audit log: %w", err)
	}
	return row.ID, nil
}

func (row *AuditLog) entry() (*AuditLogEntry, error) {
	var reasons censor.ReasonSet
	if err := json.Unmarshal([]byte(row.Reason), &reasons); err != nil {
		return nil, fmt.Errorf("audit log %s: decoding reason: %w", row.ID, err)
	}
	resultExtra, err := decodeExtra(row.ResultExtra)
	if err != nil {
		return nil, fmt.Errorf("audit log %s: decoding result extra: %w", row.ID, err)
	}
	entryExtra, err := decodeExtra(row.EntryExtra)
	if err != nil {
		return nil, fmt.Errorf("audit log %s: decoding entry extra: %w", row.ID, err)
	}
	return &AuditLogEntry{
		ID: row.ID,
		Result: censor.Result{
			Message: censor.Message{
				Content:   row.Content,
				Source:    row.Source,
				Timestamp: row.MessageTimestamp,
			},
			Risk:   censor.RiskLevel(row.RiskLevel),
			Reason: reasons,
			Extra:  resultExtra,
		},
		Extra:     entryExtra,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *Store) GetAuditLog(ctx context.Context, id string) (*AuditLogEntry, error) {
	var row AuditLog
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.entry()
}

func (s *Store) auditQuery(ctx context.Context, f AuditLogFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&AuditLog{})
	if f.Start > 0 {
		q = q.Where("message_timestamp >= ?", f.Start)
	}
	if f.End > 0 {
		q = q.Where("message_timestamp <= ?", f.End)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Risk != nil {
		q = q.Where("risk_level = ?", int(*f.Risk))
	}
	return q
}

// ListAuditLogs returns matching entries, newest message first.
func (s *Store) ListAuditLogs(ctx context.Context, f AuditLogFilter) ([]AuditLogEntry, error) {
	limit, offset := page(f.Limit, f.Offset)
	var rows []AuditLog
	err := s.auditQuery(ctx, f).
		Order("message_timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]AuditLogEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].entry()
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) CountAuditLogs(ctx context.Context, f AuditLogFilter) (int64, error) {
	var n int64
	err := s.auditQuery(ctx, f).Count(&n).Error
	return n, err
}

func (s *Store) DeleteAuditLog(ctx context.Context, id string) error {
	return deleteByID(s.db.WithContext(ctx), &AuditLog{}, id)
}

func deleteByID(db *gorm.DB, model any, id string) error {
	res := db.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSensitiveWord inserts word, or refreshes its timestamp if present, and
// returns the row id.
func (s *Store) AddSensitiveWord(ctx context.Context, word string) (string, error) {
	if word == "" {
		return "", fmt.Errorf("sensitive word must not be empty")
	}
	db := s.db.WithContext(ctx)
	row := SensitiveWord{ID: uuid.NewString(), Word: word, UpdatedAt: time.Now()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "word"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("adding sensitive word: %w", err)
	}
	var stored SensitiveWord
	if err := db.First(&stored, "word = ?", word).Error; err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *Store) ListSensitiveWords(ctx context.Context, limit, offset int) ([]SensitiveWord, error) {
	limit, offset = page(limit, offset)
	var rows []SensitiveWord
	err := s.db.WithContext(ctx).Order("word").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

func (s *Store) CountSensitiveWords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&SensitiveWord{}).Count(&n).Error
	return n, err
}

func (s *Store) DeleteSensitiveWord(ctx context.Context, id string) error {
	return deleteByID(s.db.WithContext(ctx), &SensitiveWord{}, id)
}

// AllSensitiveWords returns the full current word set.
func (s *Store) AllSensitiveWords(ctx context.Context) ([]string, error) {
	var words []string
	err := s.db.WithContext(ctx).Model(&SensitiveWord{}).Order("word").Pluck("word", &words).Error
	return words, err
}

// AddBlacklist inserts identifier, or updates its reason if present, and
// returns the row id.
func (s *Store) AddBlacklist(ctx context.Context, identifier, reason string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("blacklist identifier must not be empty")
	}
	db := s.db.WithContext(ctx)
	row := BlacklistEntry{ID: uuid.NewString(), Identifier: identifier, Reason: reason, UpdatedAt: time.Now()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("adding blacklist entry: %w", err)
	}
	var stored BlacklistEntry
	if err := db.First(&stored, "identifier = ?", identifier).Error; err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *Store) ListBlacklist(ctx context.Context, limit, offset int) ([]BlacklistEntry, error) {
	limit, offset = page(limit, offset)
	var rows []BlacklistEntry
	err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

func (s *Store) CountBlacklist(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&BlacklistEntry{}).Count(&n).Error
	return n, err
}

// SearchBlacklist matches query as a substring of the identifier or reason.
func (s *Store) SearchBlacklist(ctx context.Context, query string, limit, offset int) ([]BlacklistEntry, error) {
	limit, offset = page(limit, offset)
	like := "%" + query + "%"
	var rows []BlacklistEntry
	err := s.db.WithContext(ctx).
		Where("identifier LIKE ? OR reason LIKE ?", like, like).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (s *Store) DeleteBlacklist(ctx context.Context, id string) error {
	return deleteByID(s.db.WithContext(ctx), &BlacklistEntry{}, id)
}

// AllBlacklist returns the full current identifier set.
func (s *Store) AllBlacklist(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&BlacklistEntry{}).Order("identifier").Pluck("identifier", &ids).Error
	return ids, err
}
