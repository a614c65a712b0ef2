package domain

import (
	"regexp"
	"time"
	"unicode/utf8"
)

// SpamState is the per-sender sliding window
type SpamState struct {
	Count           int
	WindowStartedAt time.Time
	LastMessageAt   time.Time
	Warned          bool
}

// SpamReason names the criterion that flagged a message
type SpamReason string

const (
	ReasonFlood       SpamReason = "flood"
	ReasonLong        SpamReason = "long_message"
	ReasonManyLinks   SpamReason = "many_links"
	ReasonShouting    SpamReason = "uppercase_run"
	ReasonRepeated    SpamReason = "repeated_chars"
	ReasonShortRepeat SpamReason = "short_repeated"
)

// SpamVerdict is the result of observing one message
type SpamVerdict struct {
	IsSpam      bool
	ShouldWarn  bool
	ShouldBlock bool
	Count       int
	Reasons     []SpamReason
}

// SpamRules holds the content thresholds
type SpamRules struct {
	FloodCount  int           // window count above which rapid messages are flooding
	FloodGap    time.Duration // max gap between messages counted as rapid
	MaxLength   int
	MaxLinks    int
	UpperRun    int
	RepeatRun   int
	ShortLength int
	ShortRepeat int
}

// DefaultSpamRules matches the behaviour operators expect out of the box
var DefaultSpamRules = SpamRules{
	FloodCount:  3,
	FloodGap:    3 * time.Second,
	MaxLength:   500,
	MaxLinks:    3,
	UpperRun:    10,
	RepeatRun:   10,
	ShortLength: 20,
	ShortRepeat: 5,
}

// linkPattern counts schemes so URLs joined without whitespace still count separately
var linkPattern = regexp.MustCompile(`(?i)https?://`)

// ContentReasons applies the content-only criteria to text
func (r SpamRules) ContentReasons(text string) []SpamReason {
	var reasons []SpamReason
	length := utf8.RuneCountInString(text)
	if length > r.MaxLength {
		reasons = append(reasons, ReasonLong)
	}
	if len(linkPattern.FindAllStringIndex(text, -1)) >= r.MaxLinks {
		reasons = append(reasons, ReasonManyLinks)
	}
	if upperRun(text) >= r.UpperRun {
		reasons = append(reasons, ReasonShouting)
	}
	run := LongestRun(text)
	if run >= r.RepeatRun {
		reasons = append(reasons, ReasonRepeated)
	}
	if length < r.ShortLength && run >= r.ShortRepeat {
		reasons = append(reasons, ReasonShortRepeat)
	}
	return reasons
}

// LongestRun returns the length of the longest run of one repeated rune
func LongestRun(s string) int {
	best, cur := 0, 0
	var prev rune
	for i, c := range s {
		if i > 0 && c == prev {
			cur++
		} else {
			cur = 1
		}
		prev = c
		if cur > best {
			best = cur
		}
	}
	return best
}

func upperRun(s string) int {
	best, cur := 0, 0
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			cur++
			if cur > best {
				best = cur
			}
			continue
		}
		cur = 0
	}
	return best
}
