package store

import (
	"time"

	"gorm.io/gorm"
)

// Migration is one ordered, named, idempotent schema change. Grounded on
// original_source/storage/migrations.py's MIGRATIONS list: applied
// migrations are recorded in schema_version so a migration never reruns.
type Migration struct {
	Version     int
	Name        string
	Description string
	Apply       func(tx *gorm.DB) error
	// NoTx runs Apply on the connection directly rather than inside a
	// transaction; SQLite refuses to change journal mode mid-transaction.
	NoTx bool
}

// migrations mirrors migrations.py's ledger. Migration 4 (mercadolivre
// favorites indexes) is out of scope for this daemon and is not ported.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "pragma_foreign_keys_wal",
		Description: "enable foreign key enforcement and WAL journaling",
		Apply: func(tx *gorm.DB) error {
			if err := tx.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				return err
			}
			return tx.Exec("PRAGMA journal_mode = WAL").Error
		},
		NoTx: true,
	},
	{
		Version:     2,
		Name:        "index_links",
		Description: "index links on status, trust_tier, last_checked",
		Apply: func(tx *gorm.DB) error {
			stmts := []string{
				"CREATE INDEX IF NOT EXISTS idx_links_status ON links(status)",
				"CREATE INDEX IF NOT EXISTS idx_links_trust_tier ON links(trust_tier)",
				"CREATE INDEX IF NOT EXISTS idx_links_last_checked ON links(last_checked)",
			}
			for _, s := range stmts {
				if err := tx.Exec(s).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Name:        "index_books",
		Description: "index books on reading_status",
		Apply: func(tx *gorm.DB) error {
			return tx.Exec("CREATE INDEX IF NOT EXISTS idx_books_reading_status ON books(reading_status)").Error
		},
	},
	{
		Version:     5,
		Name:        "add_metadata_columns",
		Description: "add metadata JSON column to books, papers, links",
		Apply: func(tx *gorm.DB) error {
			tables := []string{"books", "papers", "links"}
			for _, table := range tables {
				exists, err := columnExists(tx, table, "metadata")
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if err := tx.Exec("ALTER TABLE " + table + " ADD COLUMN metadata TEXT DEFAULT '{}'").Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// columnExists mirrors migrations.py's requires_column_check handling for
// migration 5: SQLite has no "ADD COLUMN IF NOT EXISTS", so callers must
// probe pragma_table_info before altering.
func columnExists(tx *gorm.DB, table, column string) (bool, error) {
	var count int64
	err := tx.Raw(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&count).Error
	return count > 0, err
}

// Migrate creates the model tables with AutoMigrate, then applies every
// migration whose version is not yet recorded in schema_version, each
// inside its own transaction unless it is marked NoTx.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaVersion{}, &Link{}, &ArchiveSnapshot{}, &Book{}, &Paper{}, &User{}, &AuthToken{}, &ApiToken{}, &DaemonSetting{}); err != nil {
		return err
	}

	var applied []int
	if err := db.Model(&SchemaVersion{}).Pluck("version", &applied).Error; err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		apply := func(tx *gorm.DB) error {
			if err := m.Apply(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaVersion{
				Version:     m.Version,
				Name:        m.Name,
				Description: m.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		}
		var err error
		if m.NoTx {
			err = apply(db)
		} else {
			err = db.Transaction(apply)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
