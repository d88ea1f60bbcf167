// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package debug provides a minimal, dependency-free logging gate used by
// packages that must not import the structured logging stack directly
// (e.g. wire-level codecs). Components with access to a zerolog.Logger
// should prefer that instead; this package exists for the low-level
// corners of the tree that predate it.
package debug

import "log"

// Enable turns on debug logging across the module when true.
var Enable bool

// Printf prints the formatted string to the logger if debug logging
// is enabled.
func Printf(format string, v ...interface{}) {
	if !Enable {
		return
	}
	log.Printf(format, v...)
}
