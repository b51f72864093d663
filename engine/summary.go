package engine

import (
	"fmt"
	"strings"

	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/model"
)

// PrintRunSummary writes a console summary of a finished test run.
func PrintRunSummary(reports []*model.SessionReport) {
	if len(reports) == 0 {
		logger.Logger.Info("No sessions were run")
		return
	}

	totalSessions := len(reports)
	passedSessions := 0
	failedSessions := 0
	unresolvedSessions := 0
	totalTurns := 0
	passedTurns := 0

	for _, report := range reports {
		switch report.FinalResult {
		case model.ResultPassed:
			passedSessions++
		case model.ResultFailed:
			failedSessions++
		default:
			unresolvedSessions++
		}

		totalTurns += len(report.Conversation)
		for _, turn := range report.Conversation {
			if turn.IsPassed != nil && *turn.IsPassed {
				passedTurns++
			}
		}
	}

	passRate := float64(passedSessions) / float64(totalSessions) * 100

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("[Summary] Test Run Summary")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("  Total Sessions:   %d\n", totalSessions)
	fmt.Printf("  Passed:           %d (%.1f%%)\n", passedSessions, passRate)
	fmt.Printf("  Failed:           %d\n", failedSessions)
	if unresolvedSessions > 0 {
		fmt.Printf("  Unresolved:       %d (session logs unavailable)\n", unresolvedSessions)
	}
	fmt.Printf("  Total Turns:      %d\n", totalTurns)
	fmt.Printf("  Passed Turns:     %d\n", passedTurns)
	fmt.Println(strings.Repeat("=", 80))

	logger.Logger.Info("Test run summary",
		"sessions", totalSessions,
		"passed", passedSessions,
		"failed", failedSessions,
		"unresolved", unresolvedSessions,
		"turns", totalTurns,
		"passed_turns", passedTurns)
}

// HasFailures reports whether any session finished with anything other than
// a passed result. A session whose logs could not be fetched counts as a
// failure for exit-code purposes.
func HasFailures(reports []*model.SessionReport) bool {
	for _, report := range reports {
		if !report.Passed() {
			return true
		}
	}
	return false
}
