package confirm

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the operator-facing timestamp format
const TimestampLayout = "02.01.2006 15:04:05"

// PromptMessage asks the operator to approve a sequence that does not exceed the remote counter
func PromptMessage(proposed, current int, affirmative, negative []string) string {
	return fmt.Sprintf("⚠️ <b>Upozorenje!</b>\n\n"+
		"<b>Novi broj</b>: %04d\n"+
		"<b>Stari broj na serveru</b>: %04d\n\n"+
		"Novi broj je manji ili jednak broju na serveru. "+
		"Pošaljite %s za nastavak, %s za prekid.",
		proposed, current, quoteTokens(affirmative), quoteTokens(negative))
}

// ConfirmedMessage acknowledges an affirmative reply
func ConfirmedMessage() string {
	return "✅ Korisnik potvrdio nastavak."
}

// DeclinedMessage acknowledges a negative reply
func DeclinedMessage() string {
	return "🚫 Korisnik odbio nastavak. Obrada otkazana."
}

// TimedOutMessage reports a confirmation window that closed unanswered
func TimedOutMessage() string {
	return "⏰ Nije stigla potvrda na vrijeme. Obrada otkazana."
}

// SuccessMessage reports a published work order
func SuccessMessage(now time.Time, path, workOrder, date string) string {
	return fmt.Sprintf("✅ <b>Obrada uspješno završena</b>\n\n"+
		"<b>Datum</b>: %s\n"+
		"<b>Radni nalog</b>: %s\n"+
		"<b>Datum u Excelu</b>: %s\n"+
		"<b>Excel datoteka</b>: %s\n\n"+
		"Podaci su uspješno poslani na FTP server.",
		now.Format(TimestampLayout),
		html.EscapeString(workOrder),
		html.EscapeString(date),
		html.EscapeString(filepath.Base(path)))
}

// ErrorMessage reports a failed task
func ErrorMessage(now time.Time, path string, err error) string {
	return fmt.Sprintf("❌ <b>Greška pri obradi!</b>\n\n"+
		"<b>Datum</b>: %s\n"+
		"<b>Datoteka</b>: %s\n"+
		"<b>Greška</b>: %s\n\n"+
		"Obrada nije uspjela, provjerite logove.",
		now.Format(TimestampLayout),
		html.EscapeString(path),
		html.EscapeString(err.Error()))
}

func quoteTokens(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = "'" + html.EscapeString(tok) + "'"
	}
	return strings.Join(quoted, " ili ")
}
