package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding users, career documents, and chat
// history. The knowledge_vectors table is managed here too but accessed
// through retrieval.SQLiteStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "skillsage.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector store, which shares
// this database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Users ---

// UpsertUser inserts or updates a user keyed by email.
func (s *Store) UpsertUser(u UserRecord) error {
	now := time.Now().UTC().Format(time.RFC3339)
	doc := u.Doc
	if doc == "" {
		doc = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO users (email, name, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		u.Email, u.Name, doc, now, now,
	)
	return err
}

// GetUser returns the user with the given email, or ErrNotFound.
func (s *Store) GetUser(email string) (UserRecord, error) {
	var u UserRecord
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT email, name, doc, created_at, updated_at
		FROM users WHERE email = ?`, email,
	).Scan(&u.Email, &u.Name, &u.Doc, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return u, nil
}

// UpdateUserDoc replaces the stored profile document for an existing user.
func (s *Store) UpdateUserDoc(email, doc string) error {
	res, err := s.db.Exec(`
		UPDATE users SET doc = ?, updated_at = ? WHERE email = ?`,
		doc, time.Now().UTC().Format(time.RFC3339), email,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Careers ---

// SaveCareer inserts or updates a career document, keyed case-insensitively
// by title.
func (s *Store) SaveCareer(c CareerRecord) error {
	doc := c.Doc
	if doc == "" {
		doc = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO careers (title_ci, title, doc, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title_ci) DO UPDATE SET
			title = excluded.title,
			doc = excluded.doc`,
		titleKey(c.Title), c.Title, doc, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetCareer returns the career whose title matches case-insensitively,
// or ErrNotFound.
func (s *Store) GetCareer(title string) (CareerRecord, error) {
	var c CareerRecord
	var createdAt string
	err := s.db.QueryRow(`
		SELECT title, doc, created_at FROM careers WHERE title_ci = ?`,
		titleKey(title),
	).Scan(&c.Title, &c.Doc, &createdAt)
	if err == sql.ErrNoRows {
		return CareerRecord{}, ErrNotFound
	}
	if err != nil {
		return CareerRecord{}, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// ListCareerTitles returns all stored career titles in insertion order.
func (s *Store) ListCareerTitles() ([]string, error) {
	rows, err := s.db.Query(`SELECT title FROM careers ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// --- Chat history ---

// AppendChatMessage stores one conversation turn.
func (s *Store) AppendChatMessage(m ChatMessage) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, user_email, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserEmail, m.Role, m.Content, createdAt.Format(time.RFC3339Nano),
	)
	return err
}

// RecentChatMessages returns the user's last `limit` messages in
// chronological order.
func (s *Store) RecentChatMessages(email string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, user_email, role, content, created_at FROM (
			SELECT rowid AS rid, id, user_email, role, content, created_at
			FROM chat_messages WHERE user_email = ?
			ORDER BY created_at DESC, rid DESC LIMIT ?
		) ORDER BY created_at ASC, rid ASC`, email, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.UserEmail, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
