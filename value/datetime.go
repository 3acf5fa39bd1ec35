package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateTime is a decomposed dateTime.iso8601 value. Fields are not checked
// against the calendar; Timezone is kept verbatim ("" when absent).
type DateTime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	Timezone             string
}

// ParseDateTime reads the basic form YYYYMMDDTHH:MM:SS[tz]. The year is
// everything before the last four date digits, so it may be wider than four
// digits or signed. The extended form YYYY-MM-DDTHH:MM:SS[tz] sent by some
// peers is accepted too.
func ParseDateTime(s string) (DateTime, error) {
	bad := fmt.Errorf("value: invalid dateTime.iso8601 %q", s)
	var pos [6][2]int
	var rest int
	if len(s) >= 19 && s[4] == '-' && s[7] == '-' {
		pos = [6][2]int{{0, 4}, {5, 7}, {8, 10}, {11, 13}, {14, 16}, {17, 19}}
		rest = 19
	} else {
		t := strings.IndexByte(s, 'T')
		if t < 8 || len(s) < t+9 {
			return DateTime{}, bad
		}
		pos = [6][2]int{{0, t - 4}, {t - 4, t - 2}, {t - 2, t}, {t + 1, t + 3}, {t + 4, t + 6}, {t + 7, t + 9}}
		rest = t + 9
	}

	var fields [6]int
	for i, p := range pos {
		field := s[p[0]:p[1]]
		if i > 0 && (field[0] == '+' || field[0] == '-') {
			return DateTime{}, bad
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return DateTime{}, bad
		}
		fields[i] = n
	}
	return DateTime{
		Year: fields[0], Month: fields[1], Day: fields[2],
		Hour: fields[3], Minute: fields[4], Second: fields[5],
		Timezone: s[rest:],
	}, nil
}

// DateTimeFromTime decomposes t. Zero-offset times carry no timezone suffix.
func DateTimeFromTime(t time.Time) DateTime {
	dt := DateTime{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
	}
	if _, offset := t.Zone(); offset != 0 {
		dt.Timezone = t.Format("-0700")
	}
	return dt
}

// ISO renders the wire form.
func (dt DateTime) ISO() string {
	return fmt.Sprintf("%04d%02d%02dT%02d:%02d:%02d%s",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.Timezone)
}

func (dt DateTime) String() string { return dt.ISO() }

// Time converts to time.Time. An empty timezone is read as UTC.
func (dt DateTime) Time() (time.Time, error) {
	loc, err := zoneOf(dt.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, loc), nil
}

func zoneOf(tz string) (*time.Location, error) {
	if tz == "" || tz == "Z" {
		return time.UTC, nil
	}
	if tz[0] != '+' && tz[0] != '-' {
		return nil, fmt.Errorf("value: invalid timezone %q", tz)
	}
	digits := strings.ReplaceAll(tz[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return nil, fmt.Errorf("value: invalid timezone %q", tz)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, fmt.Errorf("value: invalid timezone %q", tz)
	}
	minutes := 0
	if len(digits) == 4 {
		if minutes, err = strconv.Atoi(digits[2:]); err != nil {
			return nil, fmt.Errorf("value: invalid timezone %q", tz)
		}
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}
