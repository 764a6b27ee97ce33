package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/matchstick/internal/canon"
	"github.com/roach88/matchstick/internal/errs"
	"github.com/roach88/matchstick/internal/state"
)

// SaveOptions names a save and marks it as an autosave.
type SaveOptions struct {
	Name     string
	AutoSave bool
}

// Snapshot is a stored save together with its decoded state.
type Snapshot struct {
	Info
	State state.GameState
}

// Info describes a stored save without decoding its state.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	IsAutoSave bool      `json:"is_auto_save"`
	Seq        int64     `json:"seq"`
	Size       int       `json:"size"`
}

const timeLayout = time.RFC3339Nano

// Save canonicalizes g, checksums it and stores the record.
// Autosaves beyond the rotation limit are deleted in the same transaction,
// oldest first.
func (s *Store) Save(ctx context.Context, g state.GameState, opts SaveOptions) (Info, error) {
	data, sum, err := canon.Checksum(canon.DomainSnapshot, g)
	if err != nil {
		return Info{}, fmt.Errorf("save: %w", err)
	}

	now := s.clock.Now()
	info := Info{
		ID:         s.ids.Generate(),
		Name:       opts.Name,
		CreatedAt:  now,
		Checksum:   sum,
		IsAutoSave: opts.AutoSave,
		Size:       len(data),
	}
	if info.Name == "" {
		info.Name = defaultName(now, opts.AutoSave)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Info{}, errs.Transient("save", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM saves`).Scan(&info.Seq); err != nil {
		return Info{}, errs.Transient("save", fmt.Errorf("next seq: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saves (id, seq, name, state, checksum, created_at, is_auto_save, state_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		info.ID,
		info.Seq,
		info.Name,
		string(data),
		info.Checksum,
		info.CreatedAt.UTC().Format(timeLayout),
		boolInt(info.IsAutoSave),
		g.Version,
	)
	if err != nil {
		return Info{}, errs.Transient("save", fmt.Errorf("insert: %w", err))
	}

	var rotated int64
	if opts.AutoSave {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM saves
			WHERE is_auto_save = 1
			AND id NOT IN (
				SELECT id FROM saves WHERE is_auto_save = 1 ORDER BY seq DESC LIMIT ?
			)
		`, s.autoLimit)
		if err != nil {
			return Info{}, errs.Transient("save", fmt.Errorf("rotate autosaves: %w", err))
		}
		rotated, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return Info{}, errs.Transient("save", fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("saved", "id", info.ID, "auto", info.IsAutoSave, "bytes", info.Size, "rotated", rotated)
	return info, nil
}

// Load reads a save, verifies its checksum and decodes the state.
// A record whose content no longer matches its checksum is rejected with
// errs.IntegrityError; an unknown id yields a not_found ValidationError.
func (s *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, name, state, checksum, created_at, is_auto_save
		FROM saves WHERE id = ?
	`, id)
	return s.scanSnapshot(row, id)
}

// Latest loads the most recently created save of any kind.
func (s *Store) Latest(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, name, state, checksum, created_at, is_auto_save
		FROM saves ORDER BY seq DESC LIMIT 1
	`)
	return s.scanSnapshot(row, "latest")
}

// List returns every save, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, name, length(state), checksum, created_at, is_auto_save
		FROM saves ORDER BY seq DESC
	`)
	if err != nil {
		return nil, errs.Transient("list saves", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info    Info
			created string
			auto    int
		)
		if err := rows.Scan(&info.ID, &info.Seq, &info.Name, &info.Size, &info.Checksum, &created, &auto); err != nil {
			return nil, fmt.Errorf("list saves: scan: %w", err)
		}
		if info.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("list saves: save %s: created_at: %w", info.ID, err)
		}
		info.IsAutoSave = auto == 1
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient("list saves", err)
	}
	return out, nil
}

// Delete removes a save. Deleting an unknown id is a not_found error.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE id = ?`, id)
	if err != nil {
		return errs.Transient("delete save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Transient("delete save", err)
	}
	if n == 0 {
		return errs.Validation(errs.CodeNotFound, "save not found", "id", id)
	}
	return nil
}

func (s *Store) scanSnapshot(row *sql.Row, ref string) (Snapshot, error) {
	var (
		snap    Snapshot
		data    string
		created string
		auto    int
	)
	err := row.Scan(&snap.ID, &snap.Seq, &snap.Name, &data, &snap.Checksum, &created, &auto)
	if err == sql.ErrNoRows {
		return Snapshot{}, errs.Validation(errs.CodeNotFound, "save not found", "id", ref)
	}
	if err != nil {
		return Snapshot{}, errs.Transient("load save", err)
	}
	snap.IsAutoSave = auto == 1
	snap.Size = len(data)
	if snap.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Snapshot{}, fmt.Errorf("load save %s: created_at: %w", snap.ID, err)
	}

	if err := verifyRecord(snap.ID, []byte(data), snap.Checksum); err != nil {
		s.logger.Warn("rejected save", "id", snap.ID, "error", err)
		return Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(data), &snap.State); err != nil {
		return Snapshot{}, fmt.Errorf("load save %s: decode state: %w", snap.ID, err)
	}
	return snap, nil
}

// verifyRecord recomputes the checksum of a stored state document.
// Unparseable content counts as an integrity failure.
func verifyRecord(id string, data []byte, want string) error {
	canonical, err := canon.Canonicalize(data)
	if err != nil {
		return &errs.IntegrityError{RecordID: id, Want: want}
	}
	got := canon.HashWithDomain(canon.DomainSnapshot, canonical)
	if got != want {
		return &errs.IntegrityError{RecordID: id, Want: want, Got: got}
	}
	return nil
}

func defaultName(now time.Time, auto bool) string {
	if auto {
		return "Autosave " + now.UTC().Format("2006-01-02 15:04:05")
	}
	return "Save " + now.UTC().Format("2006-01-02 15:04:05")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
