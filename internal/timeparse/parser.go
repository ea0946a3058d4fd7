// Package timeparse converts natural-language or ISO time strings to
// absolute instants, resolved against an injected clock.Clock so behavior
// stays deterministic under test. This is a small hand-written grammar
// rather than a pulled-in NLP library by design: the accepted dialects are
// part of the contract, not an implementation detail.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ai-task-scheduler/engine/internal/clock"
)

// ParseError reports the offending token so callers never silently guess.
type ParseError struct {
	Input   string
	Token   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timeparse: %s (token %q in %q)", e.Message, e.Token, e.Input)
}

var (
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[Tt ](\d{2}):(\d{2})(?::(\d{2}))?(Z|[+-]\d{2}:?\d{2})?$`)
	shortDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2}) (\d{1,2}):(\d{2})$`)
	bareTimeRe  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	inRelRe     = regexp.MustCompile(`^in (\d+)\s+(minute|minutes|hour|hours|day|days|week|weeks)$`)
	tomorrowRe  = regexp.MustCompile(`^tomorrow(?:\s+at\s+(.+))?$`)
	todayRe     = regexp.MustCompile(`^today\s+at\s+(.+)$`)
)

// Parser resolves time expressions against a Clock.
type Parser struct {
	clock clock.Clock
}

// New returns a Parser bound to the given clock.
func New(c clock.Clock) *Parser {
	return &Parser{clock: c}
}

// Parse interprets input (case-insensitive, whitespace-tolerant) and
// returns the absolute instant it denotes, or a *ParseError.
func (p *Parser) Parse(input string) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	normalized := strings.ToLower(trimmed)

	if m := isoRe.FindStringSubmatch(trimmed); m != nil {
		return parseISO(trimmed, m)
	}
	if m := shortDateRe.FindStringSubmatch(trimmed); m != nil {
		return parseShortDate(trimmed, m)
	}
	if m := inRelRe.FindStringSubmatch(normalized); m != nil {
		return p.parseRelative(trimmed, m)
	}
	if m := tomorrowRe.FindStringSubmatch(normalized); m != nil {
		return p.parseTomorrow(trimmed, m)
	}
	if m := todayRe.FindStringSubmatch(normalized); m != nil {
		return p.parseTodayAt(trimmed, m[1])
	}
	if m := bareTimeRe.FindStringSubmatch(normalized); m != nil {
		return p.parseBareTime(trimmed, m)
	}

	return time.Time{}, &ParseError{Input: input, Token: trimmed, Message: "unrecognized time expression"}
}

func parseISO(input string, m []string) (time.Time, error) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}

	loc := time.UTC
	if m[7] != "" && m[7] != "Z" {
		offset := strings.ReplaceAll(m[7], ":", "")
		sign := 1
		if strings.HasPrefix(offset, "-") {
			sign = -1
		}
		offset = strings.TrimLeft(offset, "+-")
		if len(offset) != 4 {
			return time.Time{}, &ParseError{Input: input, Token: m[7], Message: "invalid timezone offset"}
		}
		oh, _ := strconv.Atoi(offset[:2])
		om, _ := strconv.Atoi(offset[2:])
		loc = time.FixedZone("", sign*(oh*3600+om*60))
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

func parseShortDate(input string, m []string) (time.Time, error) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if hour > 23 || minute > 59 {
		return time.Time{}, &ParseError{Input: input, Token: input, Message: "time out of range"}
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

func (p *Parser) parseRelative(input string, m []string) (time.Time, error) {
	n, _ := strconv.Atoi(m[1])
	now := p.clock.Now()

	switch {
	case strings.HasPrefix(m[2], "minute"):
		return now.Add(time.Duration(n) * time.Minute), nil
	case strings.HasPrefix(m[2], "hour"):
		return now.Add(time.Duration(n) * time.Hour), nil
	case strings.HasPrefix(m[2], "day"):
		return now.AddDate(0, 0, n), nil
	case strings.HasPrefix(m[2], "week"):
		return now.AddDate(0, 0, n*7), nil
	}
	return time.Time{}, &ParseError{Input: input, Token: m[2], Message: "unrecognized relative unit"}
}

func (p *Parser) parseTomorrow(input string, m []string) (time.Time, error) {
	now := p.clock.Now()
	tomorrow := now.AddDate(0, 0, 1)

	if m[1] == "" {
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, now.Location()), nil
	}

	hour, minute, err := parseClockPhrase(m[1])
	if err != nil {
		return time.Time{}, &ParseError{Input: input, Token: m[1], Message: err.Error()}
	}
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, minute, 0, 0, now.Location()), nil
}

func (p *Parser) parseTodayAt(input string, clockPhrase string) (time.Time, error) {
	now := p.clock.Now()
	hour, minute, err := parseClockPhrase(clockPhrase)
	if err != nil {
		return time.Time{}, &ParseError{Input: input, Token: clockPhrase, Message: err.Error()}
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

func (p *Parser) parseBareTime(input string, m []string) (time.Time, error) {
	hour, minute, err := parseClockComponents(m[1], m[2], m[3])
	if err != nil {
		return time.Time{}, &ParseError{Input: input, Token: input, Message: err.Error()}
	}

	now := p.clock.Now()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

// parseClockPhrase parses a fragment like "9", "9:30", "9:30 am", "21:00".
func parseClockPhrase(phrase string) (hour, minute int, err error) {
	phrase = strings.TrimSpace(strings.ToLower(phrase))
	m := bareTimeRe.FindStringSubmatch(phrase)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized clock phrase")
	}
	return parseClockComponents(m[1], m[2], m[3])
}

func parseClockComponents(hourStr, minuteStr, meridiem string) (int, int, error) {
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minuteStr != "" {
		minute, _ = strconv.Atoi(minuteStr)
	}

	switch meridiem {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, fmt.Errorf("hour out of range")
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range")
	}
	return hour, minute, nil
}
