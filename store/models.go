package store

import "time"

// TrustTier classifies a web archive by freshness, per spec.
type TrustTier string

const (
	TrustTierPreLLM   TrustTier = "pre-llm"
	TrustTierEarlyLLM TrustTier = "early-llm"
	TrustTierRecent   TrustTier = "recent"
)

// Link is a stored reference to a URL, grounded on db/postgres.go's
// gorm.Model embedding convention.
type Link struct {
	ID              uint `gorm:"primaryKey"`
	URL             string `gorm:"uniqueIndex;not null"`
	Source          string `gorm:"index"`
	Title           string
	FirstSeen       time.Time `gorm:"not null"`
	LastSeen        time.Time `gorm:"not null"`
	LastChecked     *time.Time `gorm:"index"`
	Status          string
	StatusCode      int
	Archived        bool
	ArchiveURL      string
	ArchiveDate     *time.Time
	TrustTier       string `gorm:"index"`
	ArchiveAttempts int    `gorm:"not null;default:0"`
	NextRetryAfter  *time.Time
	Metadata        string `gorm:"type:text;default:'{}'"`
}

// ArchiveSnapshot is one attempt to preserve a Link at one provider.
type ArchiveSnapshot struct {
	ID             uint `gorm:"primaryKey"`
	LinkID         uint `gorm:"index;not null"`
	Service        string `gorm:"index;not null"`
	Status         string `gorm:"not null"` // success|failed
	SnapshotURL    string
	ArchiveDate    *time.Time
	Attempts       int `gorm:"not null;default:1"`
	NextRetryAfter *time.Time
	ErrorMessage   string
	Metadata       string `gorm:"type:text;default:'{}'"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// Book is a bibliographic record for a physical or digital book.
type Book struct {
	ID               uint `gorm:"primaryKey"`
	Title            string `gorm:"not null"`
	Author           string
	PublicationYear  int
	DeweyDecimal     string
	UDC              string
	Cutter           string
	CallNumber       string
	ReadingStatus    string
	EnrichedAt       *time.Time
	Metadata         string `gorm:"type:text;default:'{}'"`
}

// Paper is a bibliographic record for a research paper.
type Paper struct {
	ID            uint `gorm:"primaryKey"`
	DOI           string `gorm:"uniqueIndex"`
	Title         string `gorm:"not null"`
	FirstAuthor   string
	Year          int
	ReadingStatus string
	Metadata      string `gorm:"type:text;default:'{}'"`
}

// User is an administrative or guest account authenticated via magic link.
type User struct {
	ID              uint   `gorm:"primaryKey"`
	TelegramUserID  int64  `gorm:"uniqueIndex;not null"`
	TelegramUsername string
	IsAdmin         bool
	CreatedAt       time.Time `gorm:"not null"`
	LastLoginAt     *time.Time
}

// AuthToken is a single-use magic-link token.
type AuthToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Token     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
	IPAddress string
	UserAgent string
}

// ApiToken is a long-lived bearer token.
type ApiToken struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"index;not null"`
	Token      string `gorm:"uniqueIndex;not null"`
	Name       string
	CreatedAt  time.Time `gorm:"not null"`
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// DaemonSetting is a process-wide key/value persisted setting.
type DaemonSetting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// SchemaVersion records applied migrations, grounded on
// original_source/storage/migrations.py's schema_version table.
type SchemaVersion struct {
	Version     int    `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	AppliedAt   time.Time `gorm:"not null"`
}
