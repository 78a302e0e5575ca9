package domain

import "time"

// File kinds a read cursor can track
const (
	FileKindKillfeed = "killfeed"
	FileKindLog      = "log"
)

// ReadCursor is the durable per-(tenant, server, file-kind) record of the
// last fully-processed line number. It only moves forward, except when the
// monitor detects file rotation and resets it to zero.
type ReadCursor struct {
	TenantID  int64     `json:"tenant_id"`
	ServerID  string    `json:"server_id"`
	FileKind  string    `json:"file_kind"`
	LastLine  int64     `json:"last_line"`
	UpdatedAt time.Time `json:"updated_at"`
}
