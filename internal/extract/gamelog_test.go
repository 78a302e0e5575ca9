package extract

import (
	"testing"

	"github.com/arven/deadwatch/internal/domain"
)

func TestGameLogParse(t *testing.T) {
	e := NewGameLogExtractor()

	parseOne := func(t *testing.T, line string) RawEvent {
		t.Helper()
		events, skipped := e.Parse([]string{line}, 0)
		if skipped != 0 {
			t.Fatalf("line skipped: %q", line)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		return events[0]
	}

	t.Run("kill with prefix", func(t *testing.T) {
		ev := parseOne(t, "[2025.05.01-12.00.00:123][ 456]LogSFPS: Player A killed Player B with Rifle at 250m")
		if ev.Type != domain.EventKill {
			t.Fatalf("Type = %q, want kill", ev.Type)
		}
		want := map[string]string{
			"timestamp":   "2025.05.01-12.00.00",
			"killer_name": "Player A",
			"victim_name": "Player B",
			"weapon":      "Rifle",
			"distance":    "250",
		}
		for k, v := range want {
			if ev.Fields[k] != v {
				t.Errorf("Fields[%q] = %q, want %q", k, ev.Fields[k], v)
			}
		}
		if ev.SourceFormat != domain.SourceLog {
			t.Errorf("SourceFormat = %q, want log", ev.SourceFormat)
		}
	})

	t.Run("kill without prefix", func(t *testing.T) {
		ev := parseOne(t, "Player A killed Player B with Rifle at 250m")
		if ev.Type != domain.EventKill {
			t.Fatalf("Type = %q, want kill", ev.Type)
		}
		if ev.Fields["timestamp"] != "" {
			t.Errorf("timestamp = %q, want empty", ev.Fields["timestamp"])
		}
	})

	t.Run("suicide with cause", func(t *testing.T) {
		ev := parseOne(t, "[2025.05.01-12.00.00][12]Log: Player C committed suicide by grenade")
		if ev.Type != domain.EventSuicide {
			t.Fatalf("Type = %q, want suicide", ev.Type)
		}
		if ev.Fields["victim_name"] != "Player C" || ev.Fields["weapon"] != "grenade" {
			t.Errorf("got victim %q weapon %q", ev.Fields["victim_name"], ev.Fields["weapon"])
		}
	})

	t.Run("suicide without cause", func(t *testing.T) {
		ev := parseOne(t, "Player C committed suicide")
		if ev.Fields["weapon"] != "suicide" {
			t.Errorf("weapon = %q, want suicide", ev.Fields["weapon"])
		}
	})

	t.Run("falling death", func(t *testing.T) {
		ev := parseOne(t, "Player D died from falling")
		if ev.Type != domain.EventSuicide || ev.Fields["weapon"] != "falling" {
			t.Errorf("got type %q weapon %q", ev.Type, ev.Fields["weapon"])
		}
	})

	t.Run("connect with id", func(t *testing.T) {
		ev := parseOne(t, "Player Alice connected (id=steam:12345)")
		if ev.Type != domain.EventConnect {
			t.Fatalf("Type = %q, want connect", ev.Type)
		}
		if ev.Fields["player_name"] != "Alice" || ev.Fields["player_id"] != "steam:12345" {
			t.Errorf("got name %q id %q", ev.Fields["player_name"], ev.Fields["player_id"])
		}
	})

	t.Run("disconnect without id", func(t *testing.T) {
		ev := parseOne(t, "Player Bob disconnected")
		if ev.Type != domain.EventDisconnect {
			t.Fatalf("Type = %q, want disconnect", ev.Type)
		}
		if ev.Fields["player_id"] != "" {
			t.Errorf("player_id = %q, want empty", ev.Fields["player_id"])
		}
	})

	t.Run("mission transition", func(t *testing.T) {
		ev := parseOne(t, "Mission RaidCamp switched to Active")
		if ev.Type != domain.EventMission {
			t.Fatalf("Type = %q, want mission", ev.Type)
		}
		if ev.Fields["mission_name"] != "RaidCamp" || ev.Fields["state"] != "active" {
			t.Errorf("got mission %q state %q", ev.Fields["mission_name"], ev.Fields["state"])
		}
	})

	t.Run("world events", func(t *testing.T) {
		cases := []struct {
			line     string
			name     string
			state    string
			location string
		}{
			{"AirDrop switched to Flying at D4", "airdrop", "flying", "D4"},
			{"HeliCrash spawned at B2", "helicrash", "", "B2"},
			{"Trader opened at Camp", "trader", "opened", "Camp"},
			{"Convoy started", "convoy", "started", ""},
		}
		for _, tc := range cases {
			ev := parseOne(t, tc.line)
			if ev.Type != domain.EventWorldEvent {
				t.Errorf("%q: Type = %q, want world_event", tc.line, ev.Type)
				continue
			}
			if ev.Fields["event_name"] != tc.name {
				t.Errorf("%q: event_name = %q, want %q", tc.line, ev.Fields["event_name"], tc.name)
			}
			if ev.Fields["state"] != tc.state {
				t.Errorf("%q: state = %q, want %q", tc.line, ev.Fields["state"], tc.state)
			}
			if ev.Fields["location"] != tc.location {
				t.Errorf("%q: location = %q, want %q", tc.line, ev.Fields["location"], tc.location)
			}
		}
	})

	t.Run("unmatched lines counted not fatal", func(t *testing.T) {
		lines := []string{
			"[2025.05.01-12.00.00][1]LogInit: engine startup",
			"Player A killed Player B with Rifle at 250m",
			"",
			"garbage noise line",
		}
		events, skipped := e.Parse(lines, 10)
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		if skipped != 3 {
			t.Errorf("skipped = %d, want 3", skipped)
		}
		if events[0].LineOffset != 11 {
			t.Errorf("LineOffset = %d, want 11", events[0].LineOffset)
		}
	})
}
