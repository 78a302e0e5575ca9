package extract

import (
	"strings"

	"github.com/arven/deadwatch/internal/domain"
)

// Killfeed CSV column schema, by position. Version 1 is the original
// seven-column export; version 2 appended killer/victim platform columns.
// Columns beyond the known schema are ignored so the extractor survives
// future additions.
//
//	v1: timestamp;killer;killer_id;victim;victim_id;weapon;distance
//	v2: v1 + killer_platform;victim_platform
const (
	colTimestamp = iota
	colKillerName
	colKillerID
	colVictimName
	colVictimID
	colWeapon
	colDistance
	colKillerPlatform
	colVictimPlatform

	killfeedMinColumns = 7
)

const killfeedDelimiter = ";"

// KillfeedExtractor parses the structured, delimited kill-feed export.
type KillfeedExtractor struct{}

// NewKillfeedExtractor creates a killfeed CSV extractor.
func NewKillfeedExtractor() *KillfeedExtractor {
	return &KillfeedExtractor{}
}

// Parse maps each well-formed CSV line to a kill RawEvent. Short or empty
// lines are skipped and counted. Suicide promotion happens later in the
// normalizer, so every row comes out tagged as a kill.
func (e *KillfeedExtractor) Parse(lines []string, fromLine int64) ([]RawEvent, int) {
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

		// Exports terminate rows with the delimiter; drop the empty tail.
		cols := strings.Split(line, killfeedDelimiter)
		if len(cols) > 0 && cols[len(cols)-1] == "" {
			cols = cols[:len(cols)-1]
		}
		if len(cols) < killfeedMinColumns {
			skipped++
			continue
		}

		fields := map[string]string{
			"timestamp":   strings.TrimSpace(cols[colTimestamp]),
			"killer_name": strings.TrimSpace(cols[colKillerName]),
			"killer_id":   strings.TrimSpace(cols[colKillerID]),
			"victim_name": strings.TrimSpace(cols[colVictimName]),
			"victim_id":   strings.TrimSpace(cols[colVictimID]),
			"weapon":      strings.TrimSpace(cols[colWeapon]),
			"distance":    strings.TrimSpace(cols[colDistance]),
		}
		if fields["victim_name"] == "" && fields["killer_name"] == "" {
			skipped++
			continue
		}
		if len(cols) > colKillerPlatform {
			fields["killer_platform"] = strings.TrimSpace(cols[colKillerPlatform])
		}
		if len(cols) > colVictimPlatform {
			fields["victim_platform"] = strings.TrimSpace(cols[colVictimPlatform])
		}

		events = append(events, RawEvent{
			Type:         domain.EventKill,
			SourceFormat: domain.SourceCSV,
			LineOffset:   offset,
			Fields:       fields,
		})
	}

	return events, skipped
}
