//go:build cgo

package sqlitevec

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers the sqlite-vec extension as auto-loadable so every
	// connection opened by mattn/go-sqlite3 gets the vec0 module without
	// a separate LoadExtension call per connection.
	vec.Auto()
}
