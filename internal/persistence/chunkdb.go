package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxel-colony/internal/world"
)

// ChunkDB stores chunk records as zstd-compressed gob blobs in SQLite,
// keyed by save id and chunk coordinate. It is safe for concurrent use.
type ChunkDB struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	log *zap.Logger
}

func OpenChunkDB(path string, log *zap.Logger) (*ChunkDB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty chunk db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		_ = db.Close()
		return nil, err
	}
	log.Debug("chunk db opened", zap.String("path", path))
	return &ChunkDB{db: db, enc: enc, dec: dec, log: log}, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			save_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			save_id TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (save_id, cx, cy, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (d *ChunkDB) encode(r *world.ChunkRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("gob encode chunk %v: %w", r.Coord(), err)
	}
	return d.enc.EncodeAll(buf.Bytes(), nil), nil
}

func (d *ChunkDB) decode(blob []byte) (*world.ChunkRecord, error) {
	raw, err := d.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, err
	}
	var r world.ChunkRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateSave registers a save id with its seed. Registering an existing id
// is a no-op.
func (d *ChunkDB) CreateSave(ctx context.Context, saveID string, seed int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO saves (save_id, seed, created_at) VALUES (?, ?, ?) ON CONFLICT(save_id) DO NOTHING`,
		saveID, seed, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create save %s: %w", saveID, err)
	}
	return nil
}

// Put inserts or replaces one chunk record.
func (d *ChunkDB) Put(ctx context.Context, saveID string, r *world.ChunkRecord) error {
	blob, err := d.encode(r)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, upsertChunk, saveID, r.X, r.Y, r.Z, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put chunk %v: %w", r.Coord(), err)
	}
	return nil
}

const upsertChunk = `INSERT INTO chunks (save_id, cx, cy, cz, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(save_id, cx, cy, cz) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

// PutWorld stores every loaded chunk of w in one transaction.
func (d *ChunkDB) PutWorld(ctx context.Context, saveID string, w *world.World) (int, error) {
	chunks := w.Chunks().Chunks()
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, upsertChunk)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ch := range chunks {
		r := ch.Record()
		blob, err := d.encode(r)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, saveID, r.X, r.Y, r.Z, blob, now); err != nil {
			return 0, fmt.Errorf("put chunk %v: %w", r.Coord(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	d.log.Debug("world stored", zap.String("save", saveID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// LoadAll returns every chunk record of a save ordered by coordinate. A
// save without chunks fails with ErrNoChunks.
func (d *ChunkDB) LoadAll(ctx context.Context, saveID string) ([]world.ChunkRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT cx, cy, cz, data FROM chunks WHERE save_id = ? ORDER BY cy, cz, cx`, saveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.ChunkRecord
	for rows.Next() {
		var x, y, z int32
		var blob []byte
		if err := rows.Scan(&x, &y, &z, &blob); err != nil {
			return nil, err
		}
		r, err := d.decode(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d,%d: %w", x, y, z, err)
		}
		if r.X != x || r.Y != y || r.Z != z {
			return nil, fmt.Errorf("chunk row %d,%d,%d holds %v: %w", x, y, z, r.Coord(), world.ErrBadRecord)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("save %s: %w", saveID, ErrNoChunks)
	}
	return out, nil
}

// LoadWorld replaces the loaded chunks of w with a stored save and returns
// the save's seed and the number of chunks restored. An empty saveID picks
// the newest save.
func (d *ChunkDB) LoadWorld(ctx context.Context, saveID string, w *world.World) (int64, int, error) {
	if saveID == "" {
		saves, err := d.Saves(ctx)
		if err != nil {
			return 0, 0, err
		}
		if len(saves) == 0 {
			return 0, 0, fmt.Errorf("chunk db holds no saves: %w", ErrNoChunks)
		}
		saveID = saves[0]
	}
	var seed int64
	err := d.db.QueryRowContext(ctx, `SELECT seed FROM saves WHERE save_id = ?`, saveID).Scan(&seed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("save %s: %w", saveID, ErrNoChunks)
	}
	if err != nil {
		return 0, 0, err
	}
	records, err := d.LoadAll(ctx, saveID)
	if err != nil {
		return 0, 0, err
	}
	n, err := Restore(w, &Snapshot{Chunks: records})
	if err != nil {
		return 0, 0, fmt.Errorf("save %s: %w", saveID, err)
	}
	d.log.Debug("world loaded", zap.String("save", saveID), zap.Int("chunks", n))
	return seed, n, nil
}

// Saves lists the registered save ids, newest first.
func (d *ChunkDB) Saves(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT save_id FROM saves ORDER BY created_at DESC, save_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *ChunkDB) Close() error {
	d.enc.Close()
	d.dec.Close()
	return d.db.Close()
}
