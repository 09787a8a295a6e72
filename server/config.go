package server

import (
	"fmt"
	"strings"

	"github.com/sealdrop/sealdrop/server/notify"
	"github.com/sealdrop/sealdrop/server/storage"
)

// Config is the top-level JSON config file.
type Config struct {
	// BaseURL is the externally visible origin, eg "https://docs.example.com".
	// Recipient links are minted against it.
	BaseURL string `json:"baseUrl"`

	LinkDB   LinkDBConfig      `json:"linkDB"`
	DocStore StorageConfig     `json:"docStore"`
	SMTP     notify.SMTPConfig `json:"smtp"`
	Admin    AdminConfig       `json:"admin"`

	// SessionSecret signs admin credentials. Rotating it logs every admin out.
	SessionSecret string `json:"sessionSecret"`

	// LinkExpiresHours is the lifetime of newly minted links. 0 = 72 hours.
	LinkExpiresHours int `json:"linkExpiresHours"`
}

// One of the link store options must be configured.
type LinkDBConfig struct {
	Filesystem *LinkDBConfigFS     `json:"filesystem"`
	Sqlite     *LinkDBConfigSqlite `json:"sqlite"`
	Pebble     *LinkDBConfigPebble `json:"pebble"`
}

type LinkDBConfigFS struct {
	Root string `json:"root"` // Directory holding one JSON file per link
}

type LinkDBConfigSqlite struct {
	Filename string `json:"filename"` // Path to the sqlite database file
}

type LinkDBConfigPebble struct {
	Path string `json:"path"` // Path to the pebble database directory
}

// One of the storage options must be configured (i.e. 'filesystem', 'gcs', or 's3')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
	S3         *storage.S3Config `json:"s3"`

	// ManifestFile is the path of the document manifest JSON. If empty and the
	// filesystem backend is used, it defaults to <root>/manifest.json.
	ManifestFile string `json:"manifestFile"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
}

type AdminConfig struct {
	Username string `json:"username"`

	// PasswordHash is produced by "sealdrop hashpwd". Exactly one of
	// PasswordHash and Password must be set; plaintext is tolerated for
	// development setups only.
	PasswordHash string `json:"passwordHash"`
	Password     string `json:"password"`
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("'baseUrl' must be configured")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	n := 0
	for _, set := range []bool{c.LinkDB.Filesystem != nil, c.LinkDB.Sqlite != nil, c.LinkDB.Pebble != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("Exactly one of the link store options must be configured (i.e. 'filesystem', 'sqlite', or 'pebble')")
	}
	n = 0
	for _, set := range []bool{c.DocStore.Filesystem != nil, c.DocStore.GCS != nil, c.DocStore.S3 != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("Exactly one of the storage options must be configured (i.e. 'filesystem', 'gcs', or 's3')")
	}
	if c.DocStore.ManifestFile == "" {
		if c.DocStore.Filesystem == nil {
			return fmt.Errorf("'docStore.manifestFile' must be configured when using a remote blob store")
		}
		c.DocStore.ManifestFile = c.DocStore.Filesystem.Root + "/manifest.json"
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("'sessionSecret' must be configured")
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("'admin.username' must be configured")
	}
	if c.Admin.PasswordHash == "" && c.Admin.Password == "" {
		return fmt.Errorf("One of 'admin.passwordHash' or 'admin.password' must be configured")
	}
	if c.LinkExpiresHours <= 0 {
		c.LinkExpiresHours = 72
	}
	return nil
}
