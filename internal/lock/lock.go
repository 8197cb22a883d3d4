package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// Holder is the record a daemon leaves in the lock file of the user it serves.
type Holder struct {
	PID   int
	User  string
	Since time.Time
}

func (h Holder) encode() string {
	return fmt.Sprintf("pid=%d\nuser=%s\nsince=%s\n", h.PID, h.User, h.Since.UTC().Format(time.RFC3339))
}

// decodeHolder reads whatever fields it recognises; a half-written file
// yields a partial Holder.
func decodeHolder(content string) Holder {
	var h Holder
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "user":
			h.User = value
		case "since":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}

// LockHeldError means another hangoutd already serves the user.
type LockHeldError struct {
	Holder Holder
	Path   string
}

func (e *LockHeldError) Error() string {
	msg := fmt.Sprintf("user lock held by PID %d", e.Holder.PID)
	if e.Holder.User != "" {
		msg += " for " + e.Holder.User
	}
	if !e.Holder.Since.IsZero() {
		msg += " since " + e.Holder.Since.Format(time.RFC3339)
	}
	return msg + " (" + e.Path + ")"
}

// Lock is a held flock on a user directory.
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// Acquire locks userDir for this process. The directory name is recorded
// as the user.
func Acquire(userDir string) (*Lock, error) {
	if err := os.MkdirAll(userDir, 0700); err != nil {
		return nil, fmt.Errorf("create user dir: %w", err)
	}
	path := filepath.Join(userDir, fileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(path)
		_ = f.Close()
		return nil, &LockHeldError{Holder: decodeHolder(string(data)), Path: path}
	}

	h := Holder{PID: os.Getpid(), User: filepath.Base(userDir), Since: time.Now().Truncate(time.Second)}
	if err := rewrite(f, h.encode()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock holder: %w", err)
	}
	return &Lock{file: f, path: path, holder: h}, nil
}

func rewrite(f *os.File, content string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(content)
	return err
}

// Holder returns the record written when the lock was taken.
func (l *Lock) Holder() Holder {
	return l.holder
}

// Release unlocks and removes the lock file. Safe on a nil or released Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}
