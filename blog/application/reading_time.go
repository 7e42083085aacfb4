package application

import (
	"strconv"
	"strings"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// WordsPerMinute is the fixed reading speed used for estimates.
const WordsPerMinute = 200

// CountWords counts whitespace-delimited tokens in every section heading and
// the plain-text projection of every section body.
func CountWords(post *domain.Post) int {
	total := 0
	for _, section := range post.Sections {
		total += len(strings.Fields(section.Heading))
		total += len(strings.Fields(domain.AsText(section.Body)))
	}
	return total
}

// EstimateReadingTime rounds words/200 up to the next whole minute, never below one minute.
func EstimateReadingTime(post *domain.Post) time.Duration {
	words := CountWords(post)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// FormatReadingTime renders an estimate the way the post header shows it, e.g. "4 min".
func FormatReadingTime(d time.Duration) string {
	return strconv.Itoa(int(d/time.Minute)) + " min"
}
