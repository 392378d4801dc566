package data

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectMySQL opens a gorm DB with sane defaults.
func ConnectMySQL(dsn string, log *zap.Logger) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger(log)})
}

// ConnectSQLite opens (creating if needed) the sqlite file at path.
func ConnectSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(ensureParam(path, "_busy_timeout", "5000")), &gorm.Config{Logger: gormLogger(log)})
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

type zapWriter struct {
	s *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.s.Warnf(format, args...)
}

func gormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return logger.New(
		zapWriter{s: log.Named("gorm").Sugar()},
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false},
	)
}
