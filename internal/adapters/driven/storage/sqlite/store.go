// Package sqlite provides the persistent vector store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/davidsparrow/findmysh/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// Ensure Store implements the store interfaces.
var (
	_ driven.VectorStore   = (*Store)(nil)
	_ driven.QuotaStore    = (*Store)(nil)
	_ driven.MetadataStore = (*Store)(nil)
)

// Store is the SQLite-backed vector store. It also serves quota usage
// and app metadata, which live in the same database file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.findmysh/data/findmysh.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".findmysh", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "findmysh.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys so child rows cascade with their item
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Vector Store ====================

// CommitItem writes an item bundle in a single transaction: item row,
// chunks, tags and embedding succeed together or none do.
func (s *Store) CommitItem(ctx context.Context, bundle *domain.ItemBundle) error {
	if !bundle.Item.Kind.IsValid() {
		return fmt.Errorf("%w: source kind %q", domain.ErrInvalidInput, bundle.Item.Kind)
	}
	if bundle.Item.Origin.Ref() == "" {
		return fmt.Errorf("%w: missing origin reference", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	item := &bundle.Item
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, source_kind, asset_id, local_path, original_filename,
			display_name, created_at, modified_at, size_bytes, status,
			last_seen_at, user_deleted, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Kind.String(), nullString(item.Origin.AssetID),
		nullString(item.Origin.LocalPath), nullString(item.OriginalFilename),
		nullString(item.DisplayName), timeMillis(item.CreatedAt), timeMillis(item.ModifiedAt),
		nullInt64(item.SizeBytes), string(item.Status), timeMillis(item.LastSeenAt),
		boolInt(item.UserDeleted), item.IndexedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving item: %w", err)
	}

	for i := range bundle.Chunks {
		c := &bundle.Chunks[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_text_chunks (id, item_id, chunk_index, content)
			VALUES (?, ?, ?, ?)
		`, c.ID, c.ItemID, c.Index, c.Content); err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.Index, err)
		}
	}

	for i := range bundle.Tags {
		t := &bundle.Tags[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_tags (id, item_id, tag, confidence)
			VALUES (?, ?, ?, ?)
		`, t.ID, t.ItemID, t.Label, t.Confidence); err != nil {
			return fmt.Errorf("saving tag %q: %w", t.Label, err)
		}
	}

	e := &bundle.Embedding
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO item_embeddings (id, item_id, vector_blob, dimension, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.ItemID, float32SliceToBytes(e.Vector), e.Dimension(),
		time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE id = ?
	`, id)
	return scanItem(row.Scan)
}

// ListItems returns items of a kind, ordered by indexed_at. Soft-deleted
// items are included with UserDeleted set; the refresh sweep still needs
// to see them. An empty kind lists both kinds.
func (s *Store) ListItems(ctx context.Context, kind domain.SourceKind) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if kind != "" {
		query += ` WHERE source_kind = ?`
		args = append(args, kind.String())
	}
	query += ` ORDER BY indexed_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetChunks returns an item's text chunks in order.
func (s *Store) GetChunks(ctx context.Context, itemID string) ([]domain.TextChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, chunk_index, content
		FROM item_text_chunks
		WHERE item_id = ?
		ORDER BY chunk_index
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.TextChunk
	for rows.Next() {
		var c domain.TextChunk
		var content sql.NullString
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Index, &content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Content = content.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetTags returns an item's tags.
func (s *Store) GetTags(ctx context.Context, itemID string) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, tag, confidence
		FROM item_tags
		WHERE item_id = ?
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Label, &t.Confidence); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteItem hard-deletes an item; chunks, tags and embedding cascade.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// MarkUserDeleted soft-deletes an item.
func (s *Store) MarkUserDeleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET user_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking item deleted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FetchCandidates returns up to limit candidate tuples matching the
// structured predicate, in arbitrary store order.
func (s *Store) FetchCandidates(
	ctx context.Context,
	filter domain.CandidateFilter,
	limit int,
) ([]domain.Candidate, error) {
	where, args := buildCandidateWhere(filter)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.source_kind, i.asset_id, i.local_path, e.vector_blob
		FROM items i
		JOIN item_embeddings e ON e.item_id = i.id
		`+where+`
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var kind string
		var assetID, localPath sql.NullString
		var blob []byte
		if err := rows.Scan(&c.ItemID, &kind, &assetID, &localPath, &blob); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Kind = domain.SourceKind(kind)
		c.Origin = domain.Origin{AssetID: assetID.String, LocalPath: localPath.String}
		c.Vector = bytesToFloat32Slice(blob)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// buildCandidateWhere renders the structured predicate: indexed, not
// user-deleted, plus optional kind and date restrictions over
// COALESCE(modified_at, created_at).
func buildCandidateWhere(filter domain.CandidateFilter) (string, []any) {
	clauses := []string{"i.status = 'indexed'", "i.user_deleted = 0"}
	var args []any

	if filter.Kind != "" {
		clauses = append(clauses, "i.source_kind = ?")
		args = append(args, filter.Kind.String())
	}

	const dateField = "COALESCE(i.modified_at, i.created_at)"

	switch filter.DateOp {
	case domain.DateOpOnDay:
		if filter.From != nil {
			start, end := domain.DayBounds(*filter.From)
			clauses = append(clauses, dateField+" >= ? AND "+dateField+" < ?")
			args = append(args, start.UnixMilli(), end.UnixMilli())
		}
	case domain.DateOpAfter:
		if filter.From != nil {
			clauses = append(clauses, dateField+" >= ?")
			args = append(args, filter.From.UnixMilli())
		}
	case domain.DateOpBefore:
		if filter.From != nil {
			clauses = append(clauses, dateField+" <= ?")
			args = append(args, filter.From.UnixMilli())
		}
	case domain.DateOpRange:
		if filter.From != nil && filter.To != nil {
			clauses = append(clauses, dateField+" >= ? AND "+dateField+" <= ?")
			args = append(args, filter.From.UnixMilli(), filter.To.UnixMilli())
		}
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// HydrateItems returns display data for the given ids in one batched
// lookup. Missing ids are simply absent from the map.
func (s *Store) HydrateItems(ctx context.Context, ids []string) (map[string]driven.HydratedItem, error) {
	out := make(map[string]driven.HydratedItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[item.ID] = driven.HydratedItem{Item: *item}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chunkRows, err := s.db.QueryContext(ctx, `
		SELECT item_id, content
		FROM item_text_chunks
		WHERE item_id IN (`+placeholders+`) AND chunk_index = 0
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying first chunks: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var itemID string
		var content sql.NullString
		if err := chunkRows.Scan(&itemID, &content); err != nil {
			return nil, fmt.Errorf("scanning first chunk: %w", err)
		}
		if h, ok := out[itemID]; ok {
			h.FirstChunk = content.String
			out[itemID] = h
		}
	}
	return out, chunkRows.Err()
}

// ClearLastSeen nulls last_seen_at for every item of a kind.
func (s *Store) ClearLastSeen(ctx context.Context, kind domain.SourceKind) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE items SET last_seen_at = NULL WHERE source_kind = ?
	`, kind.String()); err != nil {
		return fmt.Errorf("clearing last seen: %w", err)
	}
	return nil
}

// TouchLastSeen stamps last_seen_at on one item.
func (s *Store) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE items SET last_seen_at = ? WHERE id = ?
	`, at.UnixMilli(), id); err != nil {
		return fmt.Errorf("touching last seen: %w", err)
	}
	return nil
}

// PurgeUnseen hard-deletes items of a kind left un-stamped by the sweep.
func (s *Store) PurgeUnseen(ctx context.Context, kind domain.SourceKind) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE source_kind = ? AND last_seen_at IS NULL
	`, kind.String())
	if err != nil {
		return 0, fmt.Errorf("purging unseen items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged items: %w", err)
	}
	return int(n), nil
}

// ==================== Quota Store ====================

// Usage returns current indexed counts and caps per source kind.
func (s *Store) Usage(ctx context.Context) (domain.QuotaUsage, error) {
	usage := domain.QuotaUsage{}

	var err error
	if usage.PhotoCap, err = s.metadataInt(ctx, "photo_cap", 10); err != nil {
		return usage, err
	}
	if usage.FileCap, err = s.metadataInt(ctx, "file_cap", 10); err != nil {
		return usage, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN source_kind = 'photo' THEN 1 END),
			COUNT(CASE WHEN source_kind = 'file' THEN 1 END)
		FROM items
		WHERE status = 'indexed' AND user_deleted = 0
	`)
	if err := row.Scan(&usage.PhotoCount, &usage.FileCount); err != nil {
		return usage, fmt.Errorf("counting items: %w", err)
	}
	return usage, nil
}

// SetCaps updates the per-kind ceilings.
func (s *Store) SetCaps(ctx context.Context, photoCap, fileCap int) error {
	if photoCap < 0 || fileCap < 0 {
		return fmt.Errorf("%w: caps must be non-negative", domain.ErrInvalidInput)
	}
	if err := s.SetMetadata(ctx, "photo_cap", strconv.Itoa(photoCap)); err != nil {
		return err
	}
	return s.SetMetadata(ctx, "file_cap", strconv.Itoa(fileCap))
}

// ==================== Metadata Store ====================

// GetMetadata returns the value for a key, or domain.ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM app_metadata WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("reading metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts a key-value pair.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO app_metadata (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("writing metadata %q: %w", key, err)
	}
	return nil
}

// metadataInt reads an integer metadata value with a default.
func (s *Store) metadataInt(ctx context.Context, key string, def int) (int, error) {
	value, err := s.GetMetadata(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// ==================== Helper Functions ====================

// itemColumns is the canonical item select list for scanItem.
const itemColumns = `id, source_kind, asset_id, local_path, original_filename,
	display_name, created_at, modified_at, size_bytes, status,
	last_seen_at, user_deleted, indexed_at`

// scanItem scans one item row; scan is row.Scan or rows.Scan.
func scanItem(scan func(...any) error) (*domain.Item, error) {
	var item domain.Item
	var kind, status string
	var assetID, localPath, originalFilename, displayName sql.NullString
	var createdAt, modifiedAt, sizeBytes, lastSeenAt sql.NullInt64
	var userDeleted int
	var indexedAt int64

	err := scan(&item.ID, &kind, &assetID, &localPath, &originalFilename,
		&displayName, &createdAt, &modifiedAt, &sizeBytes, &status,
		&lastSeenAt, &userDeleted, &indexedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	item.Kind = domain.SourceKind(kind)
	item.Origin = domain.Origin{AssetID: assetID.String, LocalPath: localPath.String}
	item.OriginalFilename = originalFilename.String
	item.DisplayName = displayName.String
	item.CreatedAt = millisTime(createdAt)
	item.ModifiedAt = millisTime(modifiedAt)
	if sizeBytes.Valid {
		item.SizeBytes = &sizeBytes.Int64
	}
	item.Status = domain.ItemStatus(status)
	item.LastSeenAt = millisTime(lastSeenAt)
	item.UserDeleted = userDeleted != 0
	item.IndexedAt = time.UnixMilli(indexedAt).UTC()
	return &item, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}
