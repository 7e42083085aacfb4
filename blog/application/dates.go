package application

import (
	"fmt"
	"time"
)

var ptBRMonths = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate renders t as "dd MMM yyyy" with Brazilian Portuguese month abbreviations.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), ptBRMonths[t.Month()-1], t.Year())
}

// FormatDateTime renders t as "dd MMM yyyy, às HH:mm", used for the edited marker.
func FormatDateTime(t time.Time) string {
	return fmt.Sprintf("%s, às %02d:%02d", FormatDate(t), t.Hour(), t.Minute())
}
