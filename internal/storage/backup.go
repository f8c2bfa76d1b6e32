package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// BackupDirName is the directory, beside the database, that holds
// backups made without an explicit path.
const BackupDirName = "backups"

// ErrCorruptBackup is returned by Restore when the backup fails the
// integrity check.
var ErrCorruptBackup = errors.New("backup failed integrity check")

// DefaultBackupPath names a timestamped backup file for the database at
// dbPath.
func DefaultBackupPath(dbPath string, now time.Time) string {
	name := "ielts_backup_" + now.UTC().Format("20060102_150405") + ".db"
	return filepath.Join(filepath.Dir(dbPath), BackupDirName, name)
}

// Backup writes a consistent copy of the database to dest using VACUUM
// INTO, so sessions saved concurrently are either fully in or out. dest
// must not exist.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("storage: backup %s: %w", dest, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("storage: create backup dir: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("storage: backup to %s: %w", dest, err)
	}
	return nil
}

// Restore replaces the database at dbPath with the backup at src and
// returns the number of sessions it holds. The backup is copied and
// checked beside dbPath first, then renamed into place, so a bad backup
// leaves the current database untouched. No Store may have dbPath open.
func Restore(ctx context.Context, src, dbPath string) (int, error) {
	if _, err := os.Stat(src); err != nil {
		return 0, fmt.Errorf("storage: restore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return 0, fmt.Errorf("storage: create data dir: %w", err)
	}

	tmp, err := copyToTemp(src, filepath.Dir(dbPath))
	if err != nil {
		return 0, err
	}
	defer func() {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmp + suffix)
		}
	}()

	sessions, err := checkBackup(ctx, tmp)
	if err != nil {
		return 0, err
	}

	// A write-ahead log left by the old database must not replay onto the
	// restored file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("storage: restore: %w", err)
		}
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		return 0, fmt.Errorf("storage: restore: %w", err)
	}
	return sessions, nil
}

func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: restore: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".restore-*.db")
	if err != nil {
		return "", fmt.Errorf("storage: restore: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("storage: copy backup: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("storage: copy backup: %w", err)
	}
	return out.Name(), nil
}

// checkBackup opens the copy, which also brings an older schema up to
// date, and verifies it.
func checkBackup(ctx context.Context, path string) (int, error) {
	st, err := Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptBackup, err)
	}
	defer st.Close()

	var result string
	if err := st.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptBackup, err)
	}
	if result != "ok" {
		return 0, fmt.Errorf("%w: %s", ErrCorruptBackup, result)
	}
	info, err := st.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptBackup, err)
	}
	return info.SessionCount, nil
}
