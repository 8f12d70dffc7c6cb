package utils

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewRunID returns a sortable, random identifier for an audit run.
func NewRunID() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b[:])
}
