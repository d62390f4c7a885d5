package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/deskagent/agent/internal/domain"
)

// delayPattern pairs a bilingual (Arabic/English) duration phrase with
// the multiplier (in seconds) it resolves to, grounded on the original
// agent's parse_delay table: seconds, then minutes, then hours, tried
// in that order and returning on the first match.
type delayPattern struct {
	re         *regexp.Regexp
	multiplier int
}

var delayPatterns = []delayPattern{
	{regexp.MustCompile(`(?i)(\d+)\s*(ثانية|ثواني|sec|second)`), 1},
	{regexp.MustCompile(`(?i)(\d+)\s*(دقيقة|دقائق|min|minute)`), 60},
	{regexp.MustCompile(`(?i)(\d+)\s*(ساعة|ساعات|hour)`), 3600},
}

// ParseDelay extracts a relative duration from free text, e.g. "in 5
// minutes" or "بعد 5 دقائق", returning the delay in seconds and
// whether a pattern matched at all.
func ParseDelay(text string) (int, bool) {
	for _, p := range delayPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n * p.multiplier, true
	}
	return 0, false
}

// clockPatterns mirror parse_time: an explicit HH:MM, an Arabic
// morning/evening hour phrase, or "at HOUR" (الساعة HOUR), tried in
// that order. Each capture group is the hour; no pattern applies its
// own PM/AM marker, so every match goes through the whole-text مساء
// check ParseTime applies afterward.
var (
	clockHHMM     = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	clockMorning  = regexp.MustCompile(`(\d{1,2})\s*صباحا?`)
	clockEvening  = regexp.MustCompile(`(\d{1,2})\s*مساء?`)
	clockAtHour   = regexp.MustCompile(`الساعة\s*(\d{1,2})`)
)

// ParseTime extracts a wall-clock "HH:MM" target from free text, e.g.
// "at 9:30" or "الساعة 9" or "9 مساء", returning it and whether a pattern
// matched. An English phrase needs an explicit HH:MM; a bare "at 9" does
// not match. An hour under 12 is shifted to 24-hour form whenever the
// text contains "مساء" (evening), matching the original's whole-text
// PM check rather than per-pattern.
func ParseTime(text string) (string, bool) {
	isPM := strings.Contains(text, "مساء")

	if m := clockHHMM.FindStringSubmatch(text); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err == nil {
			return formatHHMM(adjustPM(hour, isPM), m[2]), true
		}
	}
	if m := clockMorning.FindStringSubmatch(text); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err == nil {
			return formatHHMM(adjustPM(hour, isPM), "00"), true
		}
	}
	if m := clockEvening.FindStringSubmatch(text); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err == nil {
			return formatHHMM(adjustPM(hour, isPM), "00"), true
		}
	}
	if m := clockAtHour.FindStringSubmatch(text); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err == nil {
			return formatHHMM(adjustPM(hour, isPM), "00"), true
		}
	}
	return "", false
}

func adjustPM(hour int, isPM bool) int {
	if isPM && hour < 12 {
		return hour + 12
	}
	return hour
}

func formatHHMM(hour int, minute string) string {
	if len(minute) == 1 {
		minute = "0" + minute
	}
	return fmt.Sprintf("%02d:%s", hour, minute)
}

// BuildAddTaskInput resolves a command's natural-language Time/Delay
// fields into an AddTaskInput's Clock/DelaySeconds, trying an explicit
// delay phrase first and falling back to a clock phrase — mirroring
// parse_delay/parse_time's call order in the agent this was ported
// from. Neither field set means the caller already has a concrete
// delay or clock value and doesn't need natural-language resolution.
func BuildAddTaskInput(raw, commandName, commandData string, repeat domain.RepeatInterval) AddTaskInput {
	in := AddTaskInput{CommandName: commandName, CommandData: commandData, Repeat: repeat}
	if seconds, ok := ParseDelay(raw); ok {
		in.DelaySeconds = seconds
		return in
	}
	if clock, ok := ParseTime(raw); ok {
		in.Clock = clock
	}
	return in
}
