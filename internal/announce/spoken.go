package announce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var positionPattern = regexp.MustCompile(`\bP(\d+)`)

// SpeakPositions rewrites race positions such as "P3" so the synthesizer
// says "pee three" instead of spelling letters.
func SpeakPositions(text string) string {
	return positionPattern.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil {
			return m
		}
		return "pee " + NumberWords(n)
	})
}

var (
	smallNumbers = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	scales    = []struct {
		value int
		word  string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	}
)

// NumberWords spells a cardinal number in English, e.g. 21 -> "twenty-one"
// and 105 -> "one hundred and five".
func NumberWords(n int) string {
	if n == math.MinInt {
		return strconv.Itoa(n)
	}
	if n < 0 {
		return "minus " + NumberWords(-n)
	}
	if n < 1000 {
		return hundreds(n)
	}

	var parts []string
	for _, s := range scales {
		if n >= s.value {
			// Above a thousand billion the multiplier is itself large.
			parts = append(parts, NumberWords(n/s.value)+" "+s.word)
			n %= s.value
		}
	}
	if n > 0 {
		if n < 100 {
			parts = append(parts, "and "+hundreds(n))
		} else {
			parts = append(parts, hundreds(n))
		}
	}
	return strings.Join(parts, " ")
}

func hundreds(n int) string {
	switch {
	case n < 20:
		return smallNumbers[n]
	case n < 100:
		if n%10 == 0 {
			return tensWords[n/10]
		}
		return tensWords[n/10] + "-" + smallNumbers[n%10]
	case n%100 == 0:
		return smallNumbers[n/100] + " hundred"
	default:
		return smallNumbers[n/100] + " hundred and " + hundreds(n%100)
	}
}
