// Package extract turns raw remote file lines into format-tagged field maps.
// Two independently evolving formats share one output contract; unparseable
// individual lines are skipped and counted, never abort a batch.
package extract

// RawEvent is the transient, extractor-specific output of one parsed line.
// It lives only for the duration of one poll iteration and is never persisted.
type RawEvent struct {
	Type         string // kill, suicide, connect, disconnect, mission, world_event
	SourceFormat string // csv or log
	LineOffset   int64  // zero-based line number within the source file
	Fields       map[string]string
}

// Extractor parses a batch of lines starting at file offset fromLine. It
// returns the extracted events in file order and the number of lines that
// matched no known shape.
type Extractor interface {
	Parse(lines []string, fromLine int64) (events []RawEvent, skipped int)
}
