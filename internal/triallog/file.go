package triallog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wilberth/SledBalls/internal/fsutil"
	"github.com/wilberth/SledBalls/internal/security"
)

// Suffix is appended to the sanitized subject id to name a log file.
const Suffix = "_traject.json"

// File is a Logger that owns the file it appends to.
type File struct {
	*Logger
	path string
	w    io.WriteCloser
}

// OpenFile opens the log of subject in dir for appending, creating dir if
// needed. Earlier sessions of the same subject are kept.
func OpenFile(fsys fsutil.FileSystem, dir, subject string) (*File, error) {
	path, err := security.SubjectLogPath(dir, subject, Suffix)
	if err != nil {
		return nil, fmt.Errorf("trial log for subject %q: %w", subject, err)
	}
	if err := fsys.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	w, err := fsys.OpenAppend(path)
	if err != nil {
		return nil, fmt.Errorf("opening trial log %s: %w", path, err)
	}
	return &File{Logger: NewLogger(w), path: path, w: w}, nil
}

// Path returns the file name of the log.
func (f *File) Path() string { return f.path }

// Release closes any open block and then the file.
func (f *File) Release() error {
	return errors.Join(f.Logger.Close(), f.w.Close())
}
