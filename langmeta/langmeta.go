// Package langmeta recognizes WordPress locale codes (ll_RR) and
// provides their display names for reports.
package langmeta

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes a recognized locale.
type Meta struct {
	// Tag is the locale in WordPress form, e.g. "pt_BR".
	Tag string
	// Name is the English display name.
	Name string
	// Listed is true when the locale comes from the registry rather than
	// from ISO code validation.
	Listed bool
}

// WordPressLocales contains the locale codes the plugin ships or is
// commonly translated into.
var WordPressLocales = map[string]string{
	"ar":    "Arabic",
	"bg_BG": "Bulgarian",
	"ca":    "Catalan",
	"cs_CZ": "Czech",
	"da_DK": "Danish",
	"de_CH": "German (Switzerland)",
	"de_DE": "German",
	"el":    "Greek",
	"en_AU": "English (Australia)",
	"en_CA": "English (Canada)",
	"en_GB": "English (UK)",
	"en_US": "English (United States)",
	"es_AR": "Spanish (Argentina)",
	"es_ES": "Spanish (Spain)",
	"es_MX": "Spanish (Mexico)",
	"fa_IR": "Persian",
	"fi":    "Finnish",
	"fr_BE": "French (Belgium)",
	"fr_CA": "French (Canada)",
	"fr_FR": "French (France)",
	"he_IL": "Hebrew",
	"hi_IN": "Hindi",
	"hu_HU": "Hungarian",
	"id_ID": "Indonesian",
	"it_IT": "Italian",
	"ja":    "Japanese",
	"ko_KR": "Korean",
	"nb_NO": "Norwegian (Bokmål)",
	"nl_BE": "Dutch (Belgium)",
	"nl_NL": "Dutch",
	"pl_PL": "Polish",
	"pt_BR": "Portuguese (Brazil)",
	"pt_PT": "Portuguese (Portugal)",
	"ro_RO": "Romanian",
	"ru_RU": "Russian",
	"sk_SK": "Slovak",
	"sv_SE": "Swedish",
	"th":    "Thai",
	"tr_TR": "Turkish",
	"uk":    "Ukrainian",
	"vi":    "Vietnamese",
	"zh_CN": "Chinese (Simplified)",
	"zh_HK": "Chinese (Hong Kong)",
	"zh_TW": "Chinese (Traditional)",
}

var localeShape = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}$`)

// IsLocaleShape reports whether tag has the ll_RR form.
func IsLocaleShape(tag string) bool {
	return localeShape.MatchString(tag)
}

// Registry resolves locale codes against the WordPress list plus any
// project specific additions.
type Registry struct {
	locales map[string]string
}

// NewRegistry returns a registry of WordPressLocales extended by extra.
// Entries in extra override the built-in names.
func NewRegistry(extra map[string]string) *Registry {
	r := &Registry{locales: make(map[string]string, len(WordPressLocales)+len(extra))}
	for tag, name := range WordPressLocales {
		r.locales[tag] = name
	}
	for tag, name := range extra {
		r.locales[Canonicalize(tag)] = name
	}
	return r
}

// Recognize looks tag up in the registry. Tags that are not listed are
// still recognized when their language and region are assigned ISO
// codes, e.g. "de_AT". Anything else, like "xx_YY", is not.
func (r *Registry) Recognize(tag string) (Meta, bool) {
	canon := Canonicalize(tag)
	if name, ok := r.locales[canon]; ok {
		return Meta{Tag: canon, Name: name, Listed: true}, true
	}

	base, region, found := strings.Cut(canon, "_")
	b, err := language.ParseBase(base)
	if err != nil {
		return Meta{Tag: canon}, false
	}
	parts := []interface{}{b}
	if found {
		reg, err := language.ParseRegion(region)
		if err != nil || !reg.IsCountry() {
			return Meta{Tag: canon}, false
		}
		parts = append(parts, reg)
	}

	t, err := language.Compose(parts...)
	if err != nil {
		return Meta{Tag: canon}, false
	}
	name := display.English.Tags().Name(t)
	if name == "" {
		name = canon
	}
	return Meta{Tag: canon, Name: name}, true
}

// Canonicalize converts variants such as "pt-br" or " PT_br " into the
// WordPress form "pt_BR".
func Canonicalize(tag string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(tag), "-", "_")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "_")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "_")
}
