package rank

import (
	"fmt"
	"strings"
)

// EmptyBoardText is rendered when a leaderboard has no entries.
const EmptyBoardText = "No data yet!"

// rankGlyphs decorate ranks 1..10; anything beyond falls back to "#N".
var rankGlyphs = [...]string{
	"🥇", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟",
}

// RenderBoard produces the leaderboard text block for an ordered entry list.
// It is pure and has no error modes.
func RenderBoard(entries []Entry, metric Metric) string {
	if len(entries) == 0 {
		return EmptyBoardText
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		var value string
		if metric == MetricVoice {
			value = FormatVoiceTime(entry.Value)
		} else {
			value = fmt.Sprintf("%d messages", entry.Value)
		}
		lines = append(lines, fmt.Sprintf("%s %s • %s", rankMarker(entry.Rank), entry.Mention, value))
	}
	return strings.Join(lines, "\n")
}

func rankMarker(rank int) string {
	if rank >= 1 && rank <= len(rankGlyphs) {
		return rankGlyphs[rank-1]
	}
	return fmt.Sprintf("#%d", rank)
}

// FormatVoiceTime decomposes a second count into days/hours/minutes/seconds,
// omitting zero-valued leading units ("2m 5s", not "0d 0h 2m 5s"). Zero and
// negative inputs render as "0s".
func FormatVoiceTime(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}

	d := seconds / 86400
	h := (seconds % 86400) / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	parts := make([]string, 0, 4)
	if d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}
