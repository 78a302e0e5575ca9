package extract

import (
	"regexp"
	"strings"

	"github.com/arven/deadwatch/internal/domain"
)

// Regular expressions for parsing game log lines
var (
	// Matches the game's log prefix: [2025.05.01-12.00.00:123][ 456]LogSFPS:
	// The frame counter and channel name are both optional in older builds.
	logPrefixRegex = regexp.MustCompile(`^\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2})(?::\d+)?\](?:\[\s*\d+\])?\s*(?:Log\w+:\s*)?`)

	// Event patterns (after the prefix is stripped)
	killRegex       = regexp.MustCompile(`^(.+?) killed (.+?) with (.+?) at (\d+)m$`)
	suicideRegex    = regexp.MustCompile(`^(.+?) committed suicide(?: by (.+))?$`)
	fallingRegex    = regexp.MustCompile(`^(.+?) died from falling$`)
	connectRegex    = regexp.MustCompile(`^Player (.+?) connected(?: \(id=([A-Za-z0-9:_-]+)\))?$`)
	disconnectRegex = regexp.MustCompile(`^Player (.+?) disconnected(?: \(id=([A-Za-z0-9:_-]+)\))?$`)
	missionRegex    = regexp.MustCompile(`^Mission (\S+) switched to (\w+)$`)
	airdropRegex    = regexp.MustCompile(`^AirDrop switched to (\w+)(?: at (\S+))?$`)
	helicrashRegex  = regexp.MustCompile(`^HeliCrash spawned at (\S+)$`)
	traderRegex     = regexp.MustCompile(`^Trader (\w+)(?: at (\S+))?$`)
	convoyRegex     = regexp.MustCompile(`^Convoy (\w+)(?: at (\S+))?$`)
)

// GameLogExtractor parses the free-form, append-only game log. Matchers are
// applied in order and the first match wins; a line matching no pattern is
// silently dropped.
type GameLogExtractor struct{}

// NewGameLogExtractor creates a game log extractor.
func NewGameLogExtractor() *GameLogExtractor {
	return &GameLogExtractor{}
}

// Parse extracts events from log lines starting at file offset fromLine.
func (e *GameLogExtractor) Parse(lines []string, fromLine int64) ([]RawEvent, int) {
	var (
		events  []RawEvent
		skipped int
	)

	for i, line := range lines {
		offset := fromLine + int64(i)
		line = strings.TrimSpace(line)
		if line == "" {
			skipped++
			continue
		}
		if ev, ok := parseLogLine(line, offset); ok {
			events = append(events, ev)
		} else {
			skipped++
		}
	}

	return events, skipped
}

// parseLogLine parses a single log line into a RawEvent.
func parseLogLine(line string, offset int64) (RawEvent, bool) {
	var timestamp string
	content := line
	if match := logPrefixRegex.FindStringSubmatch(line); match != nil {
		timestamp = match[1]
		content = line[len(match[0]):]
	}

	ev := RawEvent{
		SourceFormat: domain.SourceLog,
		LineOffset:   offset,
		Fields:       map[string]string{"timestamp": timestamp},
	}

	if match := killRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventKill
		ev.Fields["killer_name"] = match[1]
		ev.Fields["victim_name"] = match[2]
		ev.Fields["weapon"] = match[3]
		ev.Fields["distance"] = match[4]
		return ev, true
	}

	if match := suicideRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventSuicide
		ev.Fields["victim_name"] = match[1]
		cause := match[2]
		if cause == "" {
			cause = "suicide"
		}
		ev.Fields["weapon"] = cause
		return ev, true
	}

	if match := fallingRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventSuicide
		ev.Fields["victim_name"] = match[1]
		ev.Fields["weapon"] = "falling"
		return ev, true
	}

	if match := connectRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventConnect
		ev.Fields["player_name"] = match[1]
		ev.Fields["player_id"] = match[2]
		return ev, true
	}

	if match := disconnectRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventDisconnect
		ev.Fields["player_name"] = match[1]
		ev.Fields["player_id"] = match[2]
		return ev, true
	}

	if match := missionRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventMission
		ev.Fields["mission_name"] = match[1]
		ev.Fields["state"] = strings.ToLower(match[2])
		return ev, true
	}

	if match := airdropRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventWorldEvent
		ev.Fields["event_name"] = "airdrop"
		ev.Fields["state"] = strings.ToLower(match[1])
		ev.Fields["location"] = match[2]
		return ev, true
	}

	if match := helicrashRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventWorldEvent
		ev.Fields["event_name"] = "helicrash"
		ev.Fields["location"] = match[1]
		return ev, true
	}

	if match := traderRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventWorldEvent
		ev.Fields["event_name"] = "trader"
		ev.Fields["state"] = strings.ToLower(match[1])
		ev.Fields["location"] = match[2]
		return ev, true
	}

	if match := convoyRegex.FindStringSubmatch(content); match != nil {
		ev.Type = domain.EventWorldEvent
		ev.Fields["event_name"] = "convoy"
		ev.Fields["state"] = strings.ToLower(match[1])
		ev.Fields["location"] = match[2]
		return ev, true
	}

	return RawEvent{}, false
}
