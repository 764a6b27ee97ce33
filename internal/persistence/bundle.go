package persistence

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/matchstick/internal/canon"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/state"
)

// Bundle identification.
const (
	BundleFormat  = "matchstick-saves"
	BundleVersion = 1
)

// zstdMagic is the little-endian zstd frame magic number.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Bundle is the export format: every save plus the metadata table.
// Checksum covers the bundle with the Checksum field omitted.
type Bundle struct {
	Format     string            `json:"format"`
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Saves      []Record          `json:"saves"`
	Metadata   map[string]string `json:"metadata"`
	Checksum   string            `json:"checksum,omitempty"`
}

// Record is one save row as carried in a bundle. State is the canonical
// document the record checksum was computed over.
type Record struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Name       string          `json:"name"`
	State      json.RawMessage `json:"state"`
	Checksum   string          `json:"checksum"`
	CreatedAt  time.Time       `json:"created_at"`
	IsAutoSave bool            `json:"is_auto_save"`
}

func (b Bundle) digest() (string, error) {
	b.Checksum = ""
	_, sum, err := canon.Checksum(canon.DomainBundle, b)
	return sum, err
}

// Export reads every save and metadata entry into a checksummed bundle.
func (s *Store) Export(ctx context.Context) (Bundle, error) {
	b := Bundle{
		Format:     BundleFormat,
		Version:    BundleVersion,
		ExportedAt: s.clock.Now(),
		Saves:      []Record{},
		Metadata:   map[string]string{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, name, state, checksum, created_at, is_auto_save
		FROM saves ORDER BY seq ASC
	`)
	if err != nil {
		return Bundle{}, errs.Transient("export", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec     Record
			data    string
			created string
			auto    int
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Name, &data, &rec.Checksum, &created, &auto); err != nil {
			return Bundle{}, fmt.Errorf("export: scan save: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return Bundle{}, fmt.Errorf("export: save %s: created_at: %w", rec.ID, err)
		}
		rec.State = json.RawMessage(data)
		rec.IsAutoSave = auto == 1
		b.Saves = append(b.Saves, rec)
	}
	if err := rows.Err(); err != nil {
		return Bundle{}, errs.Transient("export", err)
	}

	metaRows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metadata ORDER BY key`)
	if err != nil {
		return Bundle{}, errs.Transient("export", err)
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var k, v string
		if err := metaRows.Scan(&k, &v); err != nil {
			return Bundle{}, fmt.Errorf("export: scan metadata: %w", err)
		}
		b.Metadata[k] = v
	}
	if err := metaRows.Err(); err != nil {
		return Bundle{}, errs.Transient("export", err)
	}

	if b.Checksum, err = b.digest(); err != nil {
		return Bundle{}, fmt.Errorf("export: %w", err)
	}
	s.logger.Info("exported saves", "count", len(b.Saves))
	return b, nil
}

// Import replaces every save and metadata entry with the bundle contents.
// All checksums are verified before anything is written, and the
// replacement runs in one transaction: on any failure the existing saves
// are left untouched.
func (s *Store) Import(ctx context.Context, b Bundle) (int, error) {
	if err := CheckBundle(b); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Transient("import", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saves`); err != nil {
		return 0, errs.Transient("import", fmt.Errorf("clear saves: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return 0, errs.Transient("import", fmt.Errorf("clear metadata: %w", err))
	}

	for _, rec := range b.Saves {
		data, err := canon.Canonicalize(rec.State)
		if err != nil {
			return 0, fmt.Errorf("import: save %s: %w", rec.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO saves (id, seq, name, state, checksum, created_at, is_auto_save, state_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.Seq,
			rec.Name,
			string(data),
			rec.Checksum,
			rec.CreatedAt.UTC().Format(timeLayout),
			boolInt(rec.IsAutoSave),
			stateVersion(rec.State),
		)
		if err != nil {
			return 0, fmt.Errorf("import: insert save %s: %w", rec.ID, err)
		}
	}
	for k, v := range b.Metadata {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return 0, fmt.Errorf("import: insert metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Transient("import", fmt.Errorf("commit: %w", err))
	}
	s.logger.Info("imported saves", "count", len(b.Saves))
	return len(b.Saves), nil
}

// CheckBundle verifies the bundle header, the bundle checksum and every
// record checksum, and that each record decodes as a game state.
func CheckBundle(b Bundle) error {
	if b.Format != BundleFormat {
		return errs.Validation(errs.CodeInvalidBundle, "not a save bundle", "format", b.Format)
	}
	if b.Version != BundleVersion {
		return errs.Validation(errs.CodeInvalidBundle, "unsupported bundle version", "version", fmt.Sprint(b.Version))
	}
	got, err := b.digest()
	if err != nil {
		return fmt.Errorf("check bundle: %w", err)
	}
	if got != b.Checksum {
		return &errs.IntegrityError{RecordID: "bundle", Want: b.Checksum, Got: got}
	}

	seen := make(map[string]bool, len(b.Saves))
	for _, rec := range b.Saves {
		if seen[rec.ID] {
			return errs.Validation(errs.CodeInvalidBundle, "duplicate save id in bundle", "id", rec.ID)
		}
		seen[rec.ID] = true
		if err := verifyRecord(rec.ID, rec.State, rec.Checksum); err != nil {
			return err
		}
		var g state.GameState
		if err := json.Unmarshal(rec.State, &g); err != nil {
			return fmt.Errorf("check bundle: save %s: decode state: %w", rec.ID, err)
		}
	}
	return nil
}

// WriteBundle encodes b as JSON, optionally zstd-compressed.
func WriteBundle(w io.Writer, b Bundle, compress bool) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	data = append(data, '\n')

	if !compress {
		_, err := w.Write(data)
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	return enc.Close()
}

// ReadBundle decodes a bundle written by WriteBundle. Compression is
// detected from the zstd frame magic.
func ReadBundle(r io.Reader) (Bundle, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}

	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return Bundle{}, fmt.Errorf("read bundle: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	var b Bundle
	if err := json.NewDecoder(src).Decode(&b); err != nil {
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}
	return b, nil
}

// stateVersion extracts the top-level version of a state document.
func stateVersion(data []byte) int {
	var v struct {
		Version int `json:"version"`
	}
	_ = json.Unmarshal(data, &v)
	return v.Version
}
