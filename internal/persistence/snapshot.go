// Package persistence saves and restores chunk voxel data, either as
// compressed snapshot files or in a SQLite chunk database.
package persistence

import (
	"bufio"
	"cmp"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"voxel-colony/internal/world"
)

// SnapshotVersion is the on-disk format version written by WriteSnapshot.
const SnapshotVersion = 1

var (
	// ErrNoChunks is returned for saves that hold no chunks. Such a save
	// cannot be played and is treated as corrupt.
	ErrNoChunks     = errors.New("save holds no chunks")
	ErrVersion      = errors.New("unsupported save version")
	ErrTypeMismatch = errors.New("save voxel types do not match the loaded type table")
)

// Header is written as a JSON line in front of the gob payload so tools can
// identify a save without decoding it.
type Header struct {
	Version int       `json:"version"`
	SaveID  string    `json:"save_id"`
	Seed    int64     `json:"seed"`
	Chunks  int       `json:"chunks"`
	SavedAt time.Time `json:"saved_at"`
}

// Snapshot is a whole saved world. Types lists the voxel type names by id
// so a restore can detect a changed type table.
type Snapshot struct {
	Header Header
	Types  []string
	Chunks []world.ChunkRecord
}

// NewSnapshot captures every loaded chunk of w, ordered by chunk key.
func NewSnapshot(w *world.World, seed int64) *Snapshot {
	chunks := w.Chunks().Chunks()
	slices.SortFunc(chunks, func(a, b *world.Chunk) int { return cmp.Compare(a.ID.Key(), b.ID.Key()) })
	snap := &Snapshot{
		Header: Header{
			Version: SnapshotVersion,
			SaveID:  uuid.NewString(),
			Seed:    seed,
			Chunks:  len(chunks),
			SavedAt: time.Now().UTC(),
		},
		Chunks: make([]world.ChunkRecord, 0, len(chunks)),
	}
	for _, t := range w.Types().Types() {
		snap.Types = append(snap.Types, t.Name)
	}
	for _, ch := range chunks {
		snap.Chunks = append(snap.Chunks, *ch.Record())
	}
	return snap
}

// WriteSnapshot writes snap to path through a temporary file and a rename,
// so a crash never leaves a truncated save behind.
func WriteSnapshot(path string, snap *Snapshot) error {
	if len(snap.Chunks) == 0 {
		return fmt.Errorf("write snapshot %s: %w", path, ErrNoChunks)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encodeSnapshot(tmp, snap); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encodeSnapshot(f *os.File, snap *Snapshot) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the header line of a snapshot.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header %s: %w", path, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header %s: %w", path, err)
	}
	return h, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. A save without
// chunks fails with ErrNoChunks.
func ReadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	var snap Snapshot
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("gob decode %s: %w", path, err)
	}
	if snap.Header.Version != SnapshotVersion {
		return nil, fmt.Errorf("%s version %d: %w", path, snap.Header.Version, ErrVersion)
	}
	if len(snap.Chunks) == 0 {
		return nil, fmt.Errorf("%s (save %s): %w", path, snap.Header.SaveID, ErrNoChunks)
	}
	return &snap, nil
}

// Restore replaces the loaded chunks of w with the snapshot's. Every record
// is checked before the world is touched; on error w is unchanged. The type
// table of w must name the same types in the same order as the save, except
// that it may append new types.
func Restore(w *world.World, snap *Snapshot) (int, error) {
	if len(snap.Chunks) == 0 {
		return 0, ErrNoChunks
	}
	if err := checkTypes(w, snap.Types); err != nil {
		return 0, err
	}
	bounds := w.Chunks().Bounds()
	seen := make(map[world.GlobalChunkCoordinate]struct{}, len(snap.Chunks))
	chunks := make([]*world.Chunk, 0, len(snap.Chunks))
	for i := range snap.Chunks {
		ch, err := world.ChunkFromRecord(&snap.Chunks[i])
		if err != nil {
			return 0, err
		}
		if !bounds.Contains(ch.ID) {
			return 0, fmt.Errorf("restore chunk %v: %w", ch.ID, world.ErrOutOfBounds)
		}
		if _, dup := seen[ch.ID]; dup {
			return 0, fmt.Errorf("restore chunk %v: %w", ch.ID, world.ErrChunkExists)
		}
		seen[ch.ID] = struct{}{}
		chunks = append(chunks, ch)
	}
	w.Chunks().Clear()
	for _, ch := range chunks {
		if err := w.Chunks().Add(ch); err != nil {
			return 0, fmt.Errorf("restore chunk %v: %w", ch.ID, err)
		}
	}
	return len(chunks), nil
}

func checkTypes(w *world.World, names []string) error {
	types := w.Types().Types()
	if len(names) > len(types) {
		return fmt.Errorf("save has %d types, table has %d: %w", len(names), len(types), ErrTypeMismatch)
	}
	for i, name := range names {
		if types[i].Name != name {
			return fmt.Errorf("type %d is %q in the save, %q in the table: %w", i, name, types[i].Name, ErrTypeMismatch)
		}
	}
	return nil
}
