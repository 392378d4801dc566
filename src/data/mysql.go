package data

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/claimd/src/shared/fsx"
)

const (
	mysqlScheme    = "mysql://"
	sqliteFilename = "claimd.db"
)

var allModels = []interface{}{
	&NodeIdentity{}, &ClaimState{}, &ClaimAttempt{}, &Setting{},
}

// Open connects to the state database and migrates it. A dsn starting with
// mysql:// selects MySQL; any other non-empty dsn is an sqlite path, and an
// empty one means claimd.db inside stateDir.
func Open(dsn, stateDir string, log *zap.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, mysqlScheme):
		db, err = ConnectMySQL(strings.TrimPrefix(dsn, mysqlScheme), log)
	case dsn != "":
		db, err = ConnectSQLite(dsn, log)
	default:
		db, err = ConnectSQLite(fsx.StatePath(stateDir, sqliteFilename), log)
	}
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
