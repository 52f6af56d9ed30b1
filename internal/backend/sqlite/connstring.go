package sqlite

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ConnString builds a modernc.org/sqlite DSN with the pragmas the ODM
// requires: foreign_keys so Reference-field deletes behave, busy_timeout so
// a worker holding a write lock doesn't surface spurious "database is
// locked" TransportErrors to a second alias waiting behind it. Honors
// ODM_SQLITE_BUSY_TIMEOUT for the busy timeout (default 30s).
func ConnString(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}

	busy := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("ODM_SQLITE_BUSY_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			busy = d
		}
	}
	busyMs := int64(busy / time.Millisecond)

	if path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
		return fmt.Sprintf("file::memory:?cache=shared&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", busyMs)
	}

	if strings.HasPrefix(path, "file:") {
		conn := path
		sep := "?"
		if strings.Contains(conn, "?") {
			sep = "&"
		}
		if !strings.Contains(conn, "_pragma=busy_timeout") {
			conn += fmt.Sprintf("%s_pragma=busy_timeout(%d)", sep, busyMs)
			sep = "&"
		}
		if !strings.Contains(conn, "_pragma=foreign_keys") {
			conn += sep + "_pragma=foreign_keys(ON)"
		}
		return conn
	}

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", path, busyMs)
}
