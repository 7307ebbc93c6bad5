package apkres

// Locales are compared in packed form: two bytes of language followed by two
// bytes of region, each in the same packed encoding the configs use.
const packedRoot = 0

// Longest parent chain in the locale data, root excluded.
const maxParentDepth = 4

// LocaleData is the static locale information the matcher works from.
type LocaleData interface {
	// ScriptParent returns the explicit parent of packed, a locale written in
	// script. Locales without one fall back to their bare language.
	ScriptParent(script [4]byte, packed uint32) (uint32, bool)
	// IsRepresentative reports whether the language and region, written in
	// script, is the locale most commonly meant by its language.
	IsRepresentative(packed uint32, script [4]byte) bool
	// LikelyScript returns the most likely script for packed, which may have
	// no region.
	LikelyScript(packed uint32) ([4]byte, bool)
}

// LocaleMatcher ranks locales by their distance in the locale parent tree.
type LocaleMatcher struct {
	data LocaleData
}

func NewLocaleMatcher(data LocaleData) *LocaleMatcher {
	return &LocaleMatcher{data: data}
}

var defaultLocaleMatcher = NewLocaleMatcher(cldrLocaleData{})

// DefaultLocaleMatcher returns the matcher configs use, backed by the built-in
// locale data.
func DefaultLocaleMatcher() *LocaleMatcher {
	return defaultLocaleMatcher
}

// PackLocale packs already packed language and region bytes into one value.
func PackLocale(language, region [2]uint8) uint32 {
	return uint32(language[0])<<24 | uint32(language[1])<<16 | uint32(region[0])<<8 | uint32(region[1])
}

func dropRegion(packed uint32) uint32 {
	return packed & 0xFFFF0000
}

func hasRegion(packed uint32) bool {
	return (packed & 0x0000FFFF) != 0
}

// packLanguageOrRegion packs a two or three letter code. Three letter codes
// use 5 bits per letter relative to base with the high bit set.
func packLanguageOrRegion(in string, base byte) [2]uint8 {
	var out [2]uint8
	switch len(in) {
	case 0:
	case 1, 2:
		copy(out[:], in)
	default:
		first := (in[0] - base) & 0x7f
		second := (in[1] - base) & 0x7f
		third := (in[2] - base) & 0x7f
		out[0] = 0x80 | (third << 2) | (second >> 3)
		out[1] = (second << 5) | first
	}
	return out
}

func unpackLanguageOrRegion(in [2]uint8, base byte) string {
	if in[0]&0x80 != 0 {
		first := in[1] & 0x1f
		second := ((in[1] & 0xe0) >> 5) + ((in[0] & 0x03) << 3)
		third := (in[0] & 0x7c) >> 2
		return string([]byte{first + base, second + base, third + base})
	}
	if in[0] != 0 {
		if in[1] == 0 {
			return string(in[:1])
		}
		return string(in[:])
	}
	return ""
}

func packLanguage(lang string) [2]uint8 { return packLanguageOrRegion(lang, 'a') }
func packRegion(region string) [2]uint8 { return packLanguageOrRegion(region, '0') }

func unpackLanguage(in [2]uint8) string { return unpackLanguageOrRegion(in, 'a') }
func unpackRegion(in [2]uint8) string   { return unpackLanguageOrRegion(in, '0') }

// packLocaleString packs "ll-RR" or "ll" into its packed form.
func packLocaleString(s string) uint32 {
	lang, region := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			lang, region = s[:i], s[i+1:]
			break
		}
	}
	return PackLocale(packLanguage(lang), packRegion(region))
}

func unpackLocale(packed uint32) (lang, region string) {
	lang = unpackLanguage([2]uint8{uint8(packed >> 24), uint8(packed >> 16)})
	region = unpackRegion([2]uint8{uint8(packed >> 8), uint8(packed)})
	return
}

// FindParent returns the parent of packed in the locale tree, packedRoot for
// a bare language.
func (m *LocaleMatcher) FindParent(packed uint32, script [4]byte) uint32 {
	if !hasRegion(packed) {
		return packedRoot
	}
	if parent, ok := m.data.ScriptParent(script, packed); ok {
		return parent
	}
	return dropRegion(packed)
}

// FindAncestors returns packed followed by its ancestors, root excluded. If an
// ancestor is in stopList the walk ends there and stopIndex is its index in
// stopList, otherwise stopIndex is -1.
func (m *LocaleMatcher) FindAncestors(packed uint32, script [4]byte, stopList []uint32) (ancestors []uint32, stopIndex int) {
	ancestor := packed
	for {
		ancestors = append(ancestors, ancestor)
		for i, stop := range stopList {
			if stop == ancestor {
				return ancestors, i
			}
		}
		ancestor = m.FindParent(ancestor, script)
		if ancestor == packedRoot || len(ancestors) > maxParentDepth {
			return ancestors, -1
		}
	}
}

// FindDistance returns the number of edges between supported and the request
// whose ancestor chain is requestAncestors.
func (m *LocaleMatcher) FindDistance(supported uint32, script [4]byte, requestAncestors []uint32) int {
	supportedAncestors, requestIndex := m.FindAncestors(supported, script, requestAncestors)
	if requestIndex < 0 {
		// The only common ancestor is the root, which neither chain lists.
		return len(supportedAncestors) + len(requestAncestors)
	}
	return len(supportedAncestors) + requestIndex - 1
}

// IsRepresentative reports whether the packed language and region is the
// typical locale of its language when written in script.
func (m *LocaleMatcher) IsRepresentative(packed uint32, script [4]byte) bool {
	return m.data.IsRepresentative(packed, script)
}

const (
	usSpanish            = 0x65735553 // es-US
	mexicanSpanish       = 0x65734D58 // es-MX
	latinAmericanSpanish = 0x6573A424 // es-419
)

// es-US and es-MX stand in for es-419 when the latter is not offered.
func isSpecialSpanish(packed uint32) bool {
	return packed == usSpanish || packed == mexicanSpanish
}

// CompareRegions compares two regions of the requested language as matches
// for the request. The result is positive when left is the better match,
// negative when right is, and zero when the regions are equal.
func (m *LocaleMatcher) CompareRegions(leftRegion, rightRegion, reqLanguage [2]uint8, reqScript [4]byte, reqRegion [2]uint8) int {
	if leftRegion == rightRegion {
		return 0
	}
	left := PackLocale(reqLanguage, leftRegion)
	right := PackLocale(reqLanguage, rightRegion)
	request := PackLocale(reqLanguage, reqRegion)

	leftSpecial, rightSpecial := isSpecialSpanish(left), isSpecialSpanish(right)
	if leftSpecial && !rightSpecial && right != latinAmericanSpanish {
		left = latinAmericanSpanish
	} else if rightSpecial && !leftSpecial && left != latinAmericanSpanish {
		right = latinAmericanSpanish
	}

	requestAncestors, idx := m.FindAncestors(request, reqScript, []uint32{left, right})
	switch idx {
	case 0:
		return 1
	case 1:
		return -1
	}

	leftDistance := m.FindDistance(left, reqScript, requestAncestors)
	rightDistance := m.FindDistance(right, reqScript, requestAncestors)
	if leftDistance != rightDistance {
		return rightDistance - leftDistance
	}

	leftRep := m.IsRepresentative(left, reqScript)
	rightRep := m.IsRepresentative(right, reqScript)
	if leftRep != rightRep {
		if leftRep {
			return 1
		}
		return -1
	}

	// Stable fallback: the lower region code wins, two letter codes sort
	// before packed three digit ones.
	return int(int64(right) - int64(left))
}

var (
	englishStopList = []uint32{
		0x656E0000, // en
		0x656E8400, // en-001
	}
	englishLanguage = [2]uint8{'e', 'n'}
	latinScript     = [4]byte{'L', 'a', 't', 'n'}
)

// IsCloseToUsEnglish reports whether English in region is closer to en than
// to en-001.
func (m *LocaleMatcher) IsCloseToUsEnglish(region [2]uint8) bool {
	_, idx := m.FindAncestors(PackLocale(englishLanguage, region), latinScript, englishStopList)
	return idx == 0
}

// ComputeScript returns the likely script of language and region, or zeros
// when nothing is known about the language.
func (m *LocaleMatcher) ComputeScript(language, region [2]uint8) [4]byte {
	if language[0] == 0 {
		return [4]byte{}
	}
	packed := PackLocale(language, region)
	if script, ok := m.data.LikelyScript(packed); ok {
		return script
	}
	if region[0] != 0 {
		if script, ok := m.data.LikelyScript(dropRegion(packed)); ok {
			return script
		}
	}
	return [4]byte{}
}
