// Package settings persists the caller's defaults (license, output
// directory, filter and splitter) in a small SQLite key/value table.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
	_ "github.com/mattn/go-sqlite3"
)

type Key string

const (
	LicenseKey   Key = "api_key"
	OutputDirKey Key = "output_dir"
	FilterKey    Key = "filter"
	NetworkKey   Key = "splitter"
)

var AllKeys = []Key{LicenseKey, OutputDirKey, FilterKey, NetworkKey}

var ErrUnknownKey = errors.New("unknown settings key")

func ConvertToKey(val string) (Key, error) {
	for _, key := range AllKeys {
		if string(key) == val {
			return key, nil
		}
	}

	return "", cerr.Field("key", val).Wrap(ErrUnknownKey).Error("Unrecognized settings key")
}

var licensePattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

// ValidateLicense checks the shape of a license key: 16 hex characters.
func ValidateLicense(license string) error {
	if !licensePattern.MatchString(license) {
		return entity.ValidationError{Field: entity.LicenseField, Value: license}
	}

	return nil
}

const createTableQuery = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store is one handle on the settings database. Open one per task and
// close it when the task is done; handles are not shared between tasks.
type Store struct {
	db   *sql.DB
	path string
}

func Open(path string) (Store, error) {
	errctx := cerr.Field("path", path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return Store{}, errctx.Wrap(err).Error("Failed to open settings database")
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return Store{}, errctx.Wrap(err).Error("Failed to connect to settings database")
	}

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return Store{}, errctx.Wrap(err).Error("Failed to create settings table")
	}

	return Store{
		db:   db,
		path: path,
	}, nil
}

func (s Store) Close() error {
	if err := s.db.Close(); err != nil {
		return cerr.Field("path", s.path).Wrap(err).Error("Failed to close settings database")
	}

	return nil
}

// Get returns the stored value for key, and false if nothing is stored.
func (s Store) Get(ctx context.Context, key Key) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cerr.Field("key", key).Wrap(err).Error("Failed to read setting")
	}

	return value, true, nil
}

// Set validates and stores value under key, replacing what was there.
func (s Store) Set(ctx context.Context, key Key, value string) error {
	normalized, err := normalize(key, value)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO kv_store (key, value) VALUES (?, ?)", string(key), normalized)
	if err != nil {
		return cerr.Field("key", key).Wrap(err).Error("Failed to write setting")
	}

	log.WithField("key", key).Info("Saved setting")
	return nil
}

func normalize(key Key, value string) (string, error) {
	switch key {
	case LicenseKey:
		if err := ValidateLicense(value); err != nil {
			return "", err
		}
		return value, nil
	case OutputDirKey:
		if value == "" {
			return "", entity.ValidationError{Field: entity.OutputDirField}
		}
		return value, nil
	case FilterKey:
		filter, err := entity.ConvertToFilterLevel(value)
		if err != nil {
			return "", err
		}
		return filter.FormValue(), nil
	case NetworkKey:
		network, err := entity.ConvertToNetwork(value)
		if err != nil {
			return "", err
		}
		return string(network), nil
	default:
		return "", cerr.Field("key", key).Wrap(ErrUnknownKey).Error("Unrecognized settings key")
	}
}

// Defaults is what the store holds for a request, with the built-in
// defaults filled in for anything unset.
type Defaults struct {
	License   string
	OutputDir string
	Filter    entity.FilterLevel
	Network   entity.Network
}

func (s Store) Defaults(ctx context.Context) (Defaults, error) {
	defaults := Defaults{
		Filter:  entity.DefaultFilter,
		Network: entity.DefaultNetwork,
	}

	values := map[Key]string{}
	for _, key := range AllKeys {
		value, ok, err := s.Get(ctx, key)
		if err != nil {
			return Defaults{}, err
		}
		if ok {
			values[key] = value
		}
	}

	defaults.License = values[LicenseKey]
	defaults.OutputDir = values[OutputDirKey]

	if value, ok := values[FilterKey]; ok {
		filter, err := entity.ConvertToFilterLevel(value)
		if err != nil {
			return Defaults{}, cerr.Wrap(err).Error("Stored filter is invalid")
		}
		defaults.Filter = filter
	}

	if value, ok := values[NetworkKey]; ok {
		network, err := entity.ConvertToNetwork(value)
		if err != nil {
			return Defaults{}, cerr.Wrap(err).Error("Stored splitter is invalid")
		}
		defaults.Network = network
	}

	return defaults, nil
}
