package pd3

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrBadSchedule is returned by parseSchedule when the schedule string is
// malformed.
var ErrBadSchedule = errors.New("pd3: malformed report schedule")

// scheduleItem is one semicolon-separated entry of a report schedule:
// outlets,interval[,offset]. Interval and offset are seconds in the
// string form, stored here as durations.
type scheduleItem struct {
	outlets  []string
	interval time.Duration
	nextRun  time.Time
}

// reportSchedule is the parsed, running form of a Config.ReportSchedule
// string: one timer per scheduleItem, each independently due/reset.
type reportSchedule struct {
	items []*scheduleItem
}

// parseSchedule parses a schedule string of the form
// "outlets,interval_s[,offset_s];outlets,interval_s[,offset_s];..." the way
// reportschedule.c's set_schedule/tokenize pair does, splitting first on
// ';' then on ','.
func parseSchedule(spec string, now time.Time) (*reportSchedule, error) {
	sched := &reportSchedule{}
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ",")
		if len(fields) < 2 {
			return nil, errors.Wrapf(ErrBadSchedule, "entry %q", entry)
		}
		outlets := strings.Split(fields[0], "+")
		ivalSec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadSchedule, "interval in %q", entry)
		}
		interval := time.Duration(ivalSec * float64(time.Second))
		offset := time.Duration(0)
		if len(fields) >= 3 {
			offSec, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrBadSchedule, "offset in %q", entry)
			}
			offset = time.Duration(offSec * float64(time.Second))
		}
		item := &scheduleItem{
			outlets:  outlets,
			interval: interval,
		}
		if offset == 0 {
			item.nextRun = now.Add(interval)
		} else {
			item.nextRun = now.Add(offset)
		}
		sched.items = append(sched.items, item)
	}
	if len(sched.items) == 0 {
		return nil, ErrBadSchedule
	}
	return sched, nil
}

func (s *reportSchedule) parallelism() int { return len(s.items) }

// due returns the outlets for item x if it is due at now, else nil.
func (s *reportSchedule) due(x int, now time.Time) []string {
	it := s.items[x]
	if now.Before(it.nextRun) {
		return nil
	}
	return it.outlets
}

// reset advances item x's next-run deadline past now by whole multiples of
// its interval, using the same ceil-based catch-up as schedule_reset so a
// long stall doesn't cause a burst of back-to-back fires.
func (s *reportSchedule) reset(x int, now time.Time) {
	it := s.items[x]
	behind := now.Sub(it.nextRun)
	if behind <= 0 {
		return
	}
	n := math.Ceil(float64(behind) / float64(it.interval))
	it.nextRun = it.nextRun.Add(time.Duration(n) * it.interval)
}

func (s *reportSchedule) duration(x int) time.Duration {
	if x < 0 || x >= len(s.items) {
		return 0
	}
	return s.items[x].interval
}
