package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reUtteranceNoise = regexp.MustCompile(`[^\p{L}\p{N}'+:\s-]+`)
	reNameNoise      = regexp.MustCompile(`[^\p{L}'\s-]+`)
	reKeepLettersNum = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUtterance prepares transcribed speech for rule matching. Digits,
// apostrophes, colons and plus signs survive so phone numbers, "o'clock" and
// "3:30" keep their meaning.
func NormalizeUtterance(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reUtteranceNoise.ReplaceAllString(s, " ") },
		TrimAndNormalize,
	}
	return p.Apply(input)
}

// NormalizeAlias reduces a service alias to lowercase words separated by one space.
func NormalizeAlias(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersNum.ReplaceAllString(s, " ") },
		TrimAndNormalize,
	}
	return p.Apply(input)
}

func NormalizeAliases(aliases []string) []string {
	return NormalizeStringSlice(aliases, NormalizeAlias)
}
