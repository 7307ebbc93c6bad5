package apkres

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// "fil", packed
var filipinoLanguage = [2]uint8{0xAD, 0x05}

func isTagalog(lang [2]uint8) bool {
	return lang == [2]uint8{'t', 'l'} || lang == filipinoLanguage
}

// Tagalog and Filipino are treated as the same language.
func langsAreEquivalent(a, b [2]uint8) bool {
	return a == b || (isTagalog(a) && isTagalog(b))
}

func isUsCountry(country [2]uint8) bool {
	return country == [2]uint8{'U', 'S'}
}

// SetBCP47Locale sets the locale fields from a BCP-47 tag such as "sr-Latn-RS"
// and computes the script when the tag has none. An empty tag clears them.
func (c *ResTableConfig) SetBCP47Locale(tag string) error {
	c.clearLocale()
	if tag == "" {
		return nil
	}

	t, err := language.Raw.Parse(tag)
	if err != nil {
		return errors.Wrapf(ErrBadValue, "invalid locale %q: %s", tag, err.Error())
	}

	base, script, region := t.Raw()
	if b := base.String(); b != "und" {
		c.Language = packLanguage(b)
	}
	if r := region.String(); r != "ZZ" {
		c.Country = packRegion(r)
	}
	if s := script.String(); s != "Zzzz" {
		copy(c.LocaleScript[:], s)
	}
	if variants := t.Variants(); len(variants) != 0 {
		copy(c.LocaleVariant[:], strings.ToLower(variants[0].String()))
	}

	if c.LocaleScript[0] == 0 {
		c.ComputeScript()
	}
	return nil
}

func (c *ResTableConfig) clearLocale() {
	c.Language = [2]uint8{}
	c.Country = [2]uint8{}
	c.LocaleScript = [4]uint8{}
	c.LocaleVariant = [8]uint8{}
	c.LocaleScriptWasComputed = false
}

// ComputeScript fills LocaleScript with the likely script of the language
// and region.
func (c *ResTableConfig) ComputeScript() {
	c.LocaleScript = defaultLocaleMatcher.ComputeScript(c.Language, c.Country)
	c.LocaleScriptWasComputed = c.LocaleScript[0] != 0
}

// BCP47Locale returns the locale as a BCP-47 tag. Computed scripts are left
// out, an empty locale yields "".
func (c *ResTableConfig) BCP47Locale() string {
	var parts []string
	if lang := unpackLanguage(c.Language); lang != "" {
		parts = append(parts, lang)
	}
	if c.LocaleScript[0] != 0 && !c.LocaleScriptWasComputed {
		parts = append(parts, cString(c.LocaleScript[:]))
	}
	if region := unpackRegion(c.Country); region != "" {
		parts = append(parts, region)
	}
	if c.LocaleVariant[0] != 0 {
		parts = append(parts, cString(c.LocaleVariant[:]))
	}
	return strings.Join(parts, "-")
}

// qualifierLocale renders the locale as a directory qualifier: "de-rDE", or
// "b+sr+Latn" when the legacy form can't express it.
func (c *ResTableConfig) qualifierLocale() string {
	lang := unpackLanguage(c.Language)
	region := unpackRegion(c.Country)
	explicitScript := c.LocaleScript[0] != 0 && !c.LocaleScriptWasComputed

	if explicitScript || c.LocaleVariant[0] != 0 || len(lang) > 2 || len(region) > 2 {
		return "b+" + strings.ReplaceAll(c.BCP47Locale(), "-", "+")
	}
	if region == "" {
		return lang
	}
	if lang == "" {
		return "r" + region
	}
	return lang + "-r" + region
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (c *ResTableConfig) matchLocale(settings *ResTableConfig) bool {
	// Country and variant don't decide matches, only the language and script.
	if !langsAreEquivalent(c.Language, settings.Language) {
		return false
	}

	// Private-use and unknown locales fall back to requiring equal countries.
	countriesMustMatch := false
	var script [4]byte
	if settings.LocaleScript[0] == 0 {
		countriesMustMatch = true
	} else if c.LocaleScript[0] == 0 && !c.LocaleScriptWasComputed {
		script = defaultLocaleMatcher.ComputeScript(c.Language, c.Country)
		if script[0] == 0 {
			countriesMustMatch = true
		}
	} else {
		script = c.LocaleScript
	}

	if countriesMustMatch {
		if c.Country[0] != 0 && c.Country != settings.Country {
			return false
		}
	} else if script != settings.LocaleScript {
		return false
	}
	return true
}

// isLocaleMoreSpecificThan returns a positive value when c's locale is more
// specific than o's, negative when less.
func (c *ResTableConfig) isLocaleMoreSpecificThan(o *ResTableConfig) int {
	if c.locale() != 0 || o.locale() != 0 {
		if c.Language[0] != o.Language[0] {
			if c.Language[0] == 0 {
				return -1
			}
			if o.Language[0] == 0 {
				return 1
			}
		}
		if c.Country[0] != o.Country[0] {
			if c.Country[0] == 0 {
				return -1
			}
			if o.Country[0] == 0 {
				return 1
			}
		}
	}
	return c.localeImportanceScore() - o.localeImportanceScore()
}

func (c *ResTableConfig) localeImportanceScore() int {
	score := 0
	if c.LocaleVariant[0] != 0 {
		score += 2
	}
	if c.LocaleScript[0] != 0 && !c.LocaleScriptWasComputed {
		score++
	}
	return score
}

func (c *ResTableConfig) isLocaleBetterThan(o *ResTableConfig, requested *ResTableConfig) bool {
	if requested.locale() == 0 {
		return false
	}
	if c.locale() == 0 && o.locale() == 0 {
		return false
	}

	m := defaultLocaleMatcher

	// Both matched, so the languages are either empty or equivalent to the
	// request's.
	if !langsAreEquivalent(c.Language, o.Language) {
		// No-language resources are where US English traditionally lives, so
		// they beat descendants of en-001 for US-like English requests.
		if requested.Language == englishLanguage {
			if isUsCountry(requested.Country) {
				if c.Language[0] != 0 {
					return c.Country[0] == 0 || isUsCountry(c.Country)
				}
				return !(o.Country[0] == 0 || isUsCountry(o.Country))
			} else if m.IsCloseToUsEnglish(requested.Country) {
				if c.Language[0] != 0 {
					return m.IsCloseToUsEnglish(c.Country)
				}
				return !m.IsCloseToUsEnglish(o.Country)
			}
		}
		return c.Language[0] != 0
	}

	// Equivalent languages imply equal or unknown scripts after match, so
	// only the region and variant can decide.
	if cmp := m.CompareRegions(c.Country, o.Country, requested.Language, requested.LocaleScript, requested.Country); cmp != 0 {
		return cmp > 0
	}

	localeMatches := c.LocaleVariant == requested.LocaleVariant
	otherMatches := o.LocaleVariant == requested.LocaleVariant
	if localeMatches != otherMatches {
		return localeMatches
	}

	// Identical beats merely equivalent (tl vs fil).
	return c.Language == requested.Language && o.Language != requested.Language
}
