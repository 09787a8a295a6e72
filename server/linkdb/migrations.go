package linkdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE link(
			token TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			created_at INT NOT NULL,
			expires_at INT NOT NULL,
			acknowledged INT NOT NULL DEFAULT 0,
			acknowledged_at INT,
			opened INT NOT NULL DEFAULT 0,
			opened_at INT,
			revoked_at INT,
			document_label TEXT,
			url TEXT NOT NULL
		);
		CREATE INDEX idx_link_document_id ON link (document_id);
	`))

	return migs
}
