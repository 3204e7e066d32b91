//go:build !js && !wasm
// +build !js,!wasm

package crysense

import "github.com/himanishpuri/CrySense/pkg/crysense/storage"

var _ HistoryStore = (*storage.DBClient)(nil)

// NewSQLiteStorage opens (creating if needed) the SQLite history store.
func NewSQLiteStorage(dbPath string) (HistoryStore, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
