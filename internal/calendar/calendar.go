// Package calendar answers trading-session questions for the Shanghai and
// Shenzhen exchanges.
package calendar

import (
	"fmt"
	"time"

	"github.com/newthinker/stock-mcp/internal/core"
)

// maxLookback bounds the walk back to the previous trading day. Golden week
// plus surrounding weekends is the longest closure in practice.
const maxLookback = 31

type session struct {
	start, end int // minutes since midnight, end exclusive
}

var sessions = []session{
	{start: 9*60 + 30, end: 11*60 + 30},
	{start: 13 * 60, end: 15 * 60},
}

// Exchange is the exchange timezone. Falls back to a fixed +08:00 zone when
// the host has no tzdata.
var Exchange = loadExchange()

func loadExchange() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Calendar knows exchange holidays and session hours.
type Calendar struct {
	holidays map[string]struct{}
	now      func() time.Time
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

// New builds a calendar from a list of YYYY-MM-DD exchange holidays. With no
// holidays every weekday is a trading day.
func New(holidays []string, opts ...Option) (*Calendar, error) {
	c := &Calendar{
		holidays: make(map[string]struct{}, len(holidays)),
		now:      time.Now,
	}
	for _, h := range holidays {
		d, err := ParseDate(h)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("holiday %q: %w", h, err))
		}
		c.holidays[d.Format(core.DateLayout)] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the current time in the exchange timezone.
func (c *Calendar) Now() time.Time {
	return c.now().In(Exchange)
}

// IsTradingDay reports whether the exchange opens on t's calendar date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(Exchange)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.holidays[t.Format(core.DateLayout)]
	return !closed
}

// IsTradingTime reports whether the market is in session right now.
func (c *Calendar) IsTradingTime() bool {
	return c.IsTradingTimeAt(c.now())
}

// IsTradingTimeAt reports whether t falls inside a trading session.
func (c *Calendar) IsTradingTimeAt(t time.Time) bool {
	t = t.In(Exchange)
	if !c.IsTradingDay(t) {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	for _, s := range sessions {
		if m >= s.start && m < s.end {
			return true
		}
	}
	return false
}

// Status maps IsTradingTimeAt onto a market status.
func (c *Calendar) Status(t time.Time) core.MarketStatus {
	if c.IsTradingTimeAt(t) {
		return core.StatusOpen
	}
	return core.StatusClosed
}

// LatestTradingDate returns the most recent date the market was or is in session.
func (c *Calendar) LatestTradingDate() string {
	return c.LatestTradingDateAt(c.now())
}

// LatestTradingDateAt is LatestTradingDate evaluated at t. A trading day
// only counts once its morning session has opened.
func (c *Calendar) LatestTradingDateAt(t time.Time) string {
	t = t.In(Exchange)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Exchange)

	if c.IsTradingDay(day) && t.Hour()*60+t.Minute() >= sessions[0].start {
		return day.Format(core.DateLayout)
	}
	for i := 0; i < maxLookback; i++ {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			return day.Format(core.DateLayout)
		}
	}
	return previousWeekday(t).Format(core.DateLayout)
}

func previousWeekday(t time.Time) time.Time {
	day := t.AddDate(0, 0, -1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// ParseDate validates a YYYY-MM-DD date in the exchange timezone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(core.DateLayout, s, Exchange)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrInvalidArgument,
			fmt.Errorf("date %q must be YYYY-MM-DD", s))
	}
	return d, nil
}
