package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.hangouts, or $HANGOUTS_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("HANGOUTS_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hangouts")
}

// Dir returns the directory of one local user.
func Dir(user string) string {
	return filepath.Join(BaseDir(), "users", user)
}

// SocketPath returns the UDS socket path of the control API.
func SocketPath(user string) string {
	return filepath.Join(Dir(user), "daemon.sock")
}

// LockPath returns the lock file path.
func LockPath(user string) string {
	return filepath.Join(Dir(user), "LOCK")
}

// DBPath returns the key-value store path.
func DBPath(user string) string {
	return filepath.Join(Dir(user), "hangouts.db")
}

// LogDir returns the log directory.
func LogDir(user string) string {
	return filepath.Join(Dir(user), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(user string) string {
	return filepath.Join(LogDir(user), "hangoutd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the user directory tree with proper permissions.
func EnsureDir(user string) error {
	for _, d := range []string{Dir(user), LogDir(user)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
