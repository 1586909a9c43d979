// Package store is the daemon's only durable state: a single SQLite
// database reached through GORM, guarded by a single-writer mutex, and
// exposed as a narrow set of typed operations rather than a raw *gorm.DB.
// Grounded on db/postgres.go's repository shape, adapted from Postgres to
// an embedded database per spec §4.1, with an ordered migration ledger
// in place of AutoMigrate-only schema management.
package store

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"holocene.dev/holod/apperr"
)

// Store wraps a GORM handle to SQLite. All writes serialize through mu
// because database/sql's sqlite3 driver does not support concurrent
// writers; reads pass through freely.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the SQLite database at path and
// applies every pending migration.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "open database", err)
	}
	if err := Migrate(db); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "run migrations", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetTrustTier classifies an archive by date, per spec: snapshots taken
// before 2021-01-01 are pre-llm, through 2022-11-30 are early-llm, and
// anything after is recent.
func GetTrustTier(archiveDate time.Time) TrustTier {
	preLLMBoundary := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	earlyLLMBoundary := time.Date(2022, 11, 30, 23, 59, 59, 0, time.UTC)
	switch {
	case archiveDate.Before(preLLMBoundary):
		return TrustTierPreLLM
	case !archiveDate.After(earlyLLMBoundary):
		return TrustTierEarlyLLM
	default:
		return TrustTierRecent
	}
}

// UpsertLink records a sighting of url from source, creating the Link
// row on first sight and only bumping LastSeen/Title thereafter.
func (s *Store) UpsertLink(rawURL, source, title string) (linkID uint, wasNew bool, err error) {
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return 0, false, apperr.Wrap(apperr.Validation, "canonicalize url", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var existing Link
	txErr := s.db.Where("url = ?", canonical).First(&existing).Error
	if txErr == nil {
		existing.LastSeen = now
		if title != "" {
			existing.Title = title
		}
		if err := s.db.Save(&existing).Error; err != nil {
			return 0, false, apperr.Wrap(apperr.Internal, "update link", err)
		}
		return existing.ID, false, nil
	}
	if !errors.Is(txErr, gorm.ErrRecordNotFound) {
		return 0, false, apperr.Wrap(apperr.Internal, "lookup link", txErr)
	}

	link := Link{
		URL:       canonical,
		Source:    source,
		Title:     title,
		FirstSeen: now,
		LastSeen:  now,
		Metadata:  "{}",
	}
	if err := s.db.Create(&link).Error; err != nil {
		return 0, false, apperr.Wrap(apperr.Internal, "create link", err)
	}
	return link.ID, true, nil
}

// RecordSnapshotSuccess stores a successful archive and resets the
// link's retry/attempt bookkeeping.
func (s *Store) RecordSnapshotSuccess(linkID uint, service, snapshotURL string, archiveDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ArchiveSnapshot{
		LinkID:      linkID,
		Service:     service,
		Status:      "success",
		SnapshotURL: snapshotURL,
		ArchiveDate: &archiveDate,
		Attempts:    1,
		Metadata:    "{}",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(&snap).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "record snapshot success", err)
	}

	tier := GetTrustTier(archiveDate)
	err := s.db.Model(&Link{}).Where("id = ?", linkID).Updates(map[string]interface{}{
		"archived":          true,
		"archive_url":       snapshotURL,
		"archive_date":      archiveDate,
		"trust_tier":        string(tier),
		"archive_attempts":  0,
		"next_retry_after":  nil,
	}).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update link after archive success", err)
	}
	return nil
}

// RecordSnapshotFailure stores a failed archive attempt and computes the
// next retry time using the spec's backoff ladder:
// next_retry_after = now + 2^min(attempts,10) days, jittered ±10%.
func (s *Store) RecordSnapshotFailure(linkID uint, service, errMessage string) (attempts int, nextRetryAfter time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var link Link
	if err := s.db.First(&link, linkID).Error; err != nil {
		return 0, time.Time{}, apperr.Wrap(apperr.NotFound, "find link", err)
	}

	attempts = link.ArchiveAttempts + 1
	nextRetryAfter = computeBackoff(attempts)

	snap := ArchiveSnapshot{
		LinkID:         linkID,
		Service:        service,
		Status:         "failed",
		Attempts:       attempts,
		NextRetryAfter: &nextRetryAfter,
		ErrorMessage:   errMessage,
		Metadata:       "{}",
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.Create(&snap).Error; err != nil {
		return 0, time.Time{}, apperr.Wrap(apperr.Internal, "record snapshot failure", err)
	}

	updErr := s.db.Model(&Link{}).Where("id = ?", linkID).Updates(map[string]interface{}{
		"archive_attempts": attempts,
		"next_retry_after": nextRetryAfter,
	}).Error
	if updErr != nil {
		return 0, time.Time{}, apperr.Wrap(apperr.Internal, "update link after archive failure", updErr)
	}
	return attempts, nextRetryAfter, nil
}

// computeBackoff implements the spec's exponential ladder with jitter.
func computeBackoff(attempts int) time.Time {
	exp := attempts
	if exp > 10 {
		exp = 10
	}
	days := math.Pow(2, float64(exp))
	base := time.Duration(days * float64(24*time.Hour))
	jitterFrac := 1 + (rand.Float64()*0.2 - 0.1) // ±10%
	jittered := time.Duration(float64(base) * jitterFrac)
	return time.Now().UTC().Add(jittered)
}

// GetLinksDueForCheck returns up to limit links needing a health probe:
// never-checked links first, then ordered by trust tier priority
// (pre-llm > early-llm > recent > unknown) and staleness, skipping links
// checked within maxAge.
func (s *Store) GetLinksDueForCheck(limit int, maxAge time.Duration) ([]Link, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var links []Link
	err := s.db.
		Where("last_checked IS NULL OR last_checked <= ?", cutoff).
		Order("last_checked IS NOT NULL").
		Order(`CASE trust_tier
			WHEN 'pre-llm' THEN 0
			WHEN 'early-llm' THEN 1
			WHEN 'recent' THEN 2
			ELSE 3 END`).
		Order("last_checked ASC").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query links due for check", err)
	}
	return links, nil
}

// LinkHealthStats aggregates the overall health of every stored link,
// mirroring link_status_checker.py's _get_link_health_stats.
type LinkHealthStats struct {
	Total     int
	Checked   int
	Alive     int
	Dead      int
	Unchecked int
}

// GetLinkHealthStats computes aggregate counts across all links.
func (s *Store) GetLinkHealthStats() (LinkHealthStats, error) {
	var total, checked, alive, dead int64
	if err := s.db.Model(&Link{}).Count(&total).Error; err != nil {
		return LinkHealthStats{}, apperr.Wrap(apperr.Internal, "count links", err)
	}
	if err := s.db.Model(&Link{}).Where("last_checked IS NOT NULL").Count(&checked).Error; err != nil {
		return LinkHealthStats{}, apperr.Wrap(apperr.Internal, "count checked links", err)
	}
	if err := s.db.Model(&Link{}).Where("status = ?", "alive").Count(&alive).Error; err != nil {
		return LinkHealthStats{}, apperr.Wrap(apperr.Internal, "count alive links", err)
	}
	deadStatuses := []string{"dead", "not_found", "connection_error", "dns_error", "timeout"}
	if err := s.db.Model(&Link{}).Where("status IN ?", deadStatuses).Count(&dead).Error; err != nil {
		return LinkHealthStats{}, apperr.Wrap(apperr.Internal, "count dead links", err)
	}
	return LinkHealthStats{
		Total:     int(total),
		Checked:   int(checked),
		Alive:     int(alive),
		Dead:      int(dead),
		Unchecked: int(total - checked),
	}, nil
}

// RecordLinkCheck updates a link's last-known HTTP health status.
func (s *Store) RecordLinkCheck(linkID uint, statusCode int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	err := s.db.Model(&Link{}).Where("id = ?", linkID).Updates(map[string]interface{}{
		"last_checked": now,
		"status_code":  statusCode,
		"status":       status,
	}).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "record link check", err)
	}
	return nil
}

// GetRetryEligibleSnapshots returns failed snapshots eligible for a retry:
// attempts below maxAttempts and next_retry_after due, oldest first.
// Mirrors archiving.py's retry_failed_archives query shape exactly.
func (s *Store) GetRetryEligibleSnapshots(maxAttempts int, limit int) ([]ArchiveSnapshot, error) {
	now := time.Now().UTC()
	var snaps []ArchiveSnapshot
	err := s.db.
		Where("status = ?", "failed").
		Where("attempts < ?", maxAttempts).
		Where("next_retry_after IS NULL OR next_retry_after <= ?", now).
		Order("next_retry_after ASC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query retry-eligible snapshots", err)
	}
	return snaps, nil
}

// GetLink fetches a single link by ID.
func (s *Store) GetLink(id uint) (Link, error) {
	var link Link
	if err := s.db.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Link{}, apperr.New(apperr.NotFound, "link not found")
		}
		return Link{}, apperr.Wrap(apperr.Internal, "get link", err)
	}
	return link, nil
}

// GetArchiveSnapshots returns every snapshot recorded for a link, newest
// first.
func (s *Store) GetArchiveSnapshots(linkID uint) ([]ArchiveSnapshot, error) {
	var snaps []ArchiveSnapshot
	err := s.db.Where("link_id = ?", linkID).Order("created_at DESC").Find(&snaps).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get archive snapshots", err)
	}
	return snaps, nil
}

// GetSnapshot fetches a single ArchiveSnapshot by ID.
func (s *Store) GetSnapshot(id uint) (ArchiveSnapshot, error) {
	var snap ArchiveSnapshot
	if err := s.db.First(&snap, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ArchiveSnapshot{}, apperr.New(apperr.NotFound, "snapshot not found")
		}
		return ArchiveSnapshot{}, apperr.Wrap(apperr.Internal, "get snapshot", err)
	}
	return snap, nil
}

// ListLinks returns links ordered by most recently seen, paginated.
func (s *Store) ListLinks(limit, offset int) ([]Link, error) {
	var links []Link
	err := s.db.Order("last_seen DESC").Limit(limit).Offset(offset).Find(&links).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list links", err)
	}
	return links, nil
}

// CreateBook inserts a bibliographic Book record.
func (s *Store) CreateBook(book Book) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(&book).Error; err != nil {
		return Book{}, apperr.Wrap(apperr.Internal, "create book", err)
	}
	return book, nil
}

// GetBook fetches a single Book by ID.
func (s *Store) GetBook(id uint) (Book, error) {
	var book Book
	if err := s.db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Book{}, apperr.New(apperr.NotFound, "book not found")
		}
		return Book{}, apperr.Wrap(apperr.Internal, "get book", err)
	}
	return book, nil
}

// ListBooks returns Book records ordered by ID, paginated.
func (s *Store) ListBooks(limit, offset int) ([]Book, error) {
	var books []Book
	err := s.db.Order("id DESC").Limit(limit).Offset(offset).Find(&books).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list books", err)
	}
	return books, nil
}

// CreatePaper inserts a bibliographic Paper record.
func (s *Store) CreatePaper(paper Paper) (Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(&paper).Error; err != nil {
		return Paper{}, apperr.Wrap(apperr.Internal, "create paper", err)
	}
	return paper, nil
}

// GetPaper fetches a single Paper by ID.
func (s *Store) GetPaper(id uint) (Paper, error) {
	var paper Paper
	if err := s.db.First(&paper, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Paper{}, apperr.New(apperr.NotFound, "paper not found")
		}
		return Paper{}, apperr.Wrap(apperr.Internal, "get paper", err)
	}
	return paper, nil
}

// ListPapers returns Paper records ordered by ID, paginated.
func (s *Store) ListPapers(limit, offset int) ([]Paper, error) {
	var papers []Paper
	err := s.db.Order("id DESC").Limit(limit).Offset(offset).Find(&papers).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list papers", err)
	}
	return papers, nil
}

// --- Users, tokens, settings ---

// GetOrCreateUser finds a user by Telegram ID or creates one.
func (s *Store) GetOrCreateUser(telegramUserID int64, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	err := s.db.Where("telegram_user_id = ?", telegramUserID).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Wrap(apperr.Internal, "lookup user", err)
	}
	user = User{TelegramUserID: telegramUserID, TelegramUsername: username, CreatedAt: time.Now().UTC()}
	if err := s.db.Create(&user).Error; err != nil {
		return User{}, apperr.Wrap(apperr.Internal, "create user", err)
	}
	return user, nil
}

// PromoteAdmin marks a user as admin.
func (s *Store) PromoteAdmin(userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Model(&User{}).Where("id = ?", userID).Update("is_admin", true).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "promote admin", err)
	}
	return nil
}

// CreateAuthToken persists a single-use magic-link token.
func (s *Store) CreateAuthToken(userID uint, token string, ttl time.Duration) (AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	at := AuthToken{UserID: userID, Token: token, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if err := s.db.Create(&at).Error; err != nil {
		return AuthToken{}, apperr.Wrap(apperr.Internal, "create auth token", err)
	}
	return at, nil
}

// RedeemAuthToken marks a magic-link token used, failing if it is
// already used, unknown, or expired, and records the redeeming
// visitor's IP address and user agent.
func (s *Store) RedeemAuthToken(token, ipAddress, userAgent string) (AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var at AuthToken
	if err := s.db.Where("token = ?", token).First(&at).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthToken{}, apperr.New(apperr.AuthInvalid, "unknown token")
		}
		return AuthToken{}, apperr.Wrap(apperr.Internal, "lookup auth token", err)
	}
	if at.UsedAt != nil {
		return AuthToken{}, apperr.New(apperr.AuthInvalid, "token already used")
	}
	if time.Now().UTC().After(at.ExpiresAt) {
		return AuthToken{}, apperr.New(apperr.AuthInvalid, "token expired")
	}
	now := time.Now().UTC()
	at.UsedAt = &now
	at.IPAddress = ipAddress
	at.UserAgent = userAgent
	if err := s.db.Save(&at).Error; err != nil {
		return AuthToken{}, apperr.Wrap(apperr.Internal, "redeem auth token", err)
	}
	return at, nil
}

// CreateApiToken persists a long-lived bearer token for a user.
func (s *Store) CreateApiToken(userID uint, token, name string) (ApiToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt := ApiToken{UserID: userID, Token: token, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.db.Create(&pt).Error; err != nil {
		return ApiToken{}, apperr.Wrap(apperr.Internal, "create api token", err)
	}
	return pt, nil
}

// FindApiToken looks up a live (non-revoked) bearer token and stamps
// its last_used_at on every successful match.
func (s *Store) FindApiToken(token string) (ApiToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pt ApiToken
	err := s.db.Where("token = ? AND revoked_at IS NULL", token).First(&pt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApiToken{}, apperr.New(apperr.AuthInvalid, "unknown or revoked token")
		}
		return ApiToken{}, apperr.Wrap(apperr.Internal, "lookup api token", err)
	}

	now := time.Now().UTC()
	pt.LastUsedAt = &now
	if err := s.db.Model(&ApiToken{}).Where("id = ?", pt.ID).Update("last_used_at", now).Error; err != nil {
		return ApiToken{}, apperr.Wrap(apperr.Internal, "update api token last_used_at", err)
	}
	return pt, nil
}

// GetSetting reads a daemon setting, returning ("", false) if absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var setting DaemonSetting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.Internal, "get setting", err)
	}
	return setting.Value, true, nil
}

// SetSetting upserts a daemon setting.
func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	setting := DaemonSetting{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "set setting", err)
	}
	return nil
}
