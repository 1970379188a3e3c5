package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Render fetches up to limit distinct sessions, in the order given, and
// formats them. Sessions that cannot be read are skipped. A limit <= 0 means
// no cap.
func Render(ctx context.Context, store Store, userID int64, ids []int64, limit int) string {
	seen := make(map[int64]bool, len(ids))
	sessions := make([]Session, 0, len(ids))

	for _, id := range ids {
		if limit > 0 && len(sessions) >= limit {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		s, err := store.Session(ctx, userID, id)
		if err != nil {
			log.Debug().Err(err).Int64("user_id", userID).Int64("session_id", id).Msg("skipping history session")
			continue
		}
		sessions = append(sessions, s)
	}

	return Format(sessions)
}

// Format renders sessions as markdown, one heading per session and one table
// of sets per exercise. No sessions render as "".
func Format(sessions []Session) string {
	if len(sessions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Workout History Context\n\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "## Workout on %s (%d min)\n\n", s.Date.Format(DateLayout), s.DurationSeconds/60)
		for _, ex := range s.Exercises {
			fmt.Fprintf(&b, "### %s (%s)\n", ex.Name, ex.Category)
			b.WriteString("| Set | Weight (kg) | Reps | Rest (s) |\n")
			b.WriteString("|-----|------------|------|----------|\n")
			for i, set := range ex.Sets {
				fmt.Fprintf(&b, "| %d | %s | %d | %d |\n", i+1, formatWeight(set.Weight), set.Reps, set.RestSeconds)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatWeight always keeps a decimal place, so 60 renders as "60.0" and
// 62.5 as "62.5".
func formatWeight(w float64) string {
	s := strconv.FormatFloat(w, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
