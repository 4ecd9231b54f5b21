package temporal

import "github.com/couchcryptid/storm-data-clusters/internal/domain"

// SyncCalendarFields re-derives the redundant calendar columns (year, month
// name, year-month, day and HHMM time) from the begin and end timestamps.
func SyncCalendarFields(r domain.EventRecord) domain.EventRecord {
	begin, end := r.BeginDateTime, r.EndDateTime

	r.Year = begin.Year()
	r.MonthName = begin.Month().String()

	r.BeginYearMonth = begin.Format("200601")
	r.BeginDay = begin.Day()
	r.BeginTime = begin.Format("1504")

	r.EndYearMonth = end.Format("200601")
	r.EndDay = end.Day()
	r.EndTime = end.Format("1504")
	return r
}
