package domain

import "time"

// Window is a named inclusive date range over which unit sales are summed.
type Window struct {
	Name  string
	Start time.Time // calendar date, UTC midnight
	End   time.Time // calendar date, UTC midnight, inclusive
}

// Window column names, in presentation order.
const (
	Window1Day   = "1 Day"
	Window7Days  = "7 Days"
	Window8to14  = "8-14"
	Window15to21 = "15-21"
	Window22to28 = "22-28"
	Window1to28  = "1-28"
	Window29to56 = "29-56"
	Window57to84 = "57-84"
)

// WindowNames lists all eight window columns in presentation order.
var WindowNames = []string{
	Window1Day,
	Window7Days,
	Window8to14,
	Window15to21,
	Window22to28,
	Window1to28,
	Window29to56,
	Window57to84,
}

// FourWeekWindows are the component windows of the 4-week average.
var FourWeekWindows = []string{Window7Days, Window8to14, Window15to21, Window22to28}

// ThreeMonthWindows are the component windows of the 3-month average.
var ThreeMonthWindows = []string{Window1to28, Window29to56, Window57to84}
