package stats

import (
	"time"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{
	language.English, // fallback, must stay first
	language.Chinese,
	language.Japanese,
	language.Korean,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Portuguese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var shortMonths = map[language.Tag][12]string{
	language.English:    {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	language.Chinese:    {"1月", "2月", "3月", "4月", "5月", "6月", "7月", "8月", "9月", "10月", "11月", "12月"},
	language.Japanese:   {"1月", "2月", "3月", "4月", "5月", "6月", "7月", "8月", "9月", "10月", "11月", "12月"},
	language.Korean:     {"1월", "2월", "3월", "4월", "5월", "6월", "7월", "8월", "9월", "10월", "11월", "12월"},
	language.German:     {"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."},
	language.French:     {"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
	language.Spanish:    {"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
	language.Italian:    {"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
	language.Portuguese: {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
}

// Labeler produces short month names for one language.
type Labeler struct {
	tag    language.Tag
	months [12]string
}

// NewLabeler matches locale (a BCP 47 tag such as "zh-CN") against the
// languages that have month tables. Anything unparsable or unmatched gets
// English.
func NewLabeler(locale string) Labeler {
	base := language.English
	if tag, err := language.Parse(locale); err == nil {
		if _, idx, conf := localeMatcher.Match(tag); conf != language.No {
			base = supportedLocales[idx]
		}
	}
	return Labeler{tag: base, months: shortMonths[base]}
}

// Tag returns the matched language.
func (l Labeler) Tag() language.Tag {
	if l.tag == (language.Tag{}) {
		return language.English
	}
	return l.tag
}

// Short returns the short name of m.
func (l Labeler) Short(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	if l.months[0] == "" {
		return shortMonths[language.English][m-1]
	}
	return l.months[m-1]
}
