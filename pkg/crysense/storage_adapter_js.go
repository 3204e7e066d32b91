//go:build js && wasm
// +build js,wasm

package crysense

import "errors"

// NewSQLiteStorage is unavailable in the browser build.
func NewSQLiteStorage(dbPath string) (HistoryStore, error) {
	return nil, errors.New("sqlite history is not supported in js/wasm builds")
}
