package statestore

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"time"
)

// Opts is the options for the snapshot export store.
type Opts struct {
	// The datastore path
	Path string

	// Timeout for read operations
	ReadTimeout time.Duration

	// Timeout for write operations
	WriteTimeout time.Duration
}
