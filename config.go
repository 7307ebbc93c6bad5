package apkres

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Size of the ResTable_config structure this package understands.
const resTableConfigSize = 52

// Orientation
const (
	OrientationAny    = 0x00
	OrientationPort   = 0x01
	OrientationLand   = 0x02
	OrientationSquare = 0x03
)

// Touchscreen
const (
	TouchscreenAny     = 0x00
	TouchscreenNoTouch = 0x01
	TouchscreenStylus  = 0x02
	TouchscreenFinger  = 0x03
)

// Density
const (
	DensityDefault = 0
	DensityLow     = 120
	DensityMedium  = 160
	DensityTV      = 213
	DensityHigh    = 240
	DensityXHigh   = 320
	DensityXXHigh  = 480
	DensityXXXHigh = 640
	DensityAny     = 0xfffe
	DensityNone    = 0xffff
)

// Keyboard, navigation
const (
	KeyboardAny    = 0x00
	KeyboardNoKeys = 0x01
	KeyboardQwerty = 0x02
	Keyboard12Key  = 0x03

	NavigationAny       = 0x00
	NavigationNoNav     = 0x01
	NavigationDpad      = 0x02
	NavigationTrackball = 0x03
	NavigationWheel     = 0x04
)

// InputFlags bits
const (
	MaskKeysHidden = 0x03
	KeysHiddenAny  = 0x00
	KeysHiddenNo   = 0x01
	KeysHiddenYes  = 0x02
	KeysHiddenSoft = 0x03

	MaskNavHidden = 0x0c
	NavHiddenAny  = 0x00
	NavHiddenNo   = 0x04
	NavHiddenYes  = 0x08
)

// ScreenLayout bits
const (
	MaskScreenSize   = 0x0f
	ScreenSizeAny    = 0x00
	ScreenSizeSmall  = 0x01
	ScreenSizeNormal = 0x02
	ScreenSizeLarge  = 0x03
	ScreenSizeXLarge = 0x04

	MaskScreenLong = 0x30
	ScreenLongAny  = 0x00
	ScreenLongNo   = 0x10
	ScreenLongYes  = 0x20

	MaskLayoutDir = 0xC0
	LayoutDirAny  = 0x00
	LayoutDirLTR  = 0x40
	LayoutDirRTL  = 0x80
)

// ScreenLayout2 and ColorMode bits
const (
	MaskScreenRound = 0x03
	ScreenRoundAny  = 0x00
	ScreenRoundNo   = 0x01
	ScreenRoundYes  = 0x02

	MaskWideColorGamut = 0x03
	WideColorGamutAny  = 0x00
	WideColorGamutNo   = 0x01
	WideColorGamutYes  = 0x02

	MaskHdr = 0x0c
	HdrAny  = 0x00
	HdrNo   = 0x04
	HdrYes  = 0x08
)

// UIMode bits
const (
	MaskUIModeType       = 0x0f
	UIModeTypeAny        = 0x00
	UIModeTypeNormal     = 0x01
	UIModeTypeDesk       = 0x02
	UIModeTypeCar        = 0x03
	UIModeTypeTelevision = 0x04
	UIModeTypeAppliance  = 0x05
	UIModeTypeWatch      = 0x06
	UIModeTypeVRHeadset  = 0x07
	MaskUIModeNight      = 0x30
	UIModeNightAny       = 0x00
	UIModeNightNo        = 0x10
	UIModeNightYes       = 0x20
)

// Configuration dimension bits, as used by type spec flags and Diff.
const (
	ConfigMcc                = 0x0001
	ConfigMnc                = 0x0002
	ConfigLocale             = 0x0004
	ConfigTouchscreen        = 0x0008
	ConfigKeyboard           = 0x0010
	ConfigKeyboardHidden     = 0x0020
	ConfigNavigation         = 0x0040
	ConfigOrientation        = 0x0080
	ConfigDensity            = 0x0100
	ConfigScreenSize         = 0x0200
	ConfigVersion            = 0x0400
	ConfigScreenLayout       = 0x0800
	ConfigUIMode             = 0x1000
	ConfigSmallestScreenSize = 0x2000
	ConfigLayoutDir          = 0x4000
	ConfigScreenRound        = 0x8000
	ConfigColorMode          = 0x10000
)

// ResTableConfig describes a device configuration, either the one a resource
// variant was compiled for or the one a lookup is made with.
type ResTableConfig struct {
	Size uint32
	// imsi
	Mcc uint16
	Mnc uint16

	// locale, packed as in the binary format
	Language [2]uint8
	Country  [2]uint8

	// screen type
	Orientation uint8
	Touchscreen uint8
	Density     uint16

	// input
	Keyboard   uint8
	Navigation uint8
	InputFlags uint8
	InputPad0  uint8

	// screen size
	ScreenWidth  uint16
	ScreenHeight uint16

	// version
	SDKVersion   uint16
	MinorVersion uint16

	// screen config
	ScreenLayout          uint8
	UIMode                uint8
	SmallestScreenWidthDp uint16

	// screen size dp
	ScreenWidthDp  uint16
	ScreenHeightDp uint16

	LocaleScript  [4]uint8
	LocaleVariant [8]uint8

	ScreenLayout2    uint8
	ColorMode        uint8
	ScreenConfigPad2 uint16

	// Set when LocaleScript was derived from language and region rather
	// than given explicitly. Not part of the binary form.
	LocaleScriptWasComputed bool
}

// parseConfig reads a ResTable_config at data[off:]. Configs written by older
// tools are shorter and get zero filled, longer ones are truncated.
func parseConfig(data []byte, off int) (ResTableConfig, error) {
	var c ResTableConfig
	if !inBounds(data, off, 4) {
		return c, badType("config at 0x%x is truncated", off)
	}
	size := u32(data, off)
	if size < 4 || !inBounds(data, off, int(size)) {
		return c, badType("config at 0x%x has bad size %d", off, size)
	}

	var buf [resTableConfigSize]byte
	copy(buf[:], data[off:off+int(size)])

	c.Size = size
	c.Mcc = u16(buf[:], 4)
	c.Mnc = u16(buf[:], 6)
	copy(c.Language[:], buf[8:10])
	copy(c.Country[:], buf[10:12])
	c.Orientation = buf[12]
	c.Touchscreen = buf[13]
	c.Density = u16(buf[:], 14)
	c.Keyboard = buf[16]
	c.Navigation = buf[17]
	c.InputFlags = buf[18]
	c.InputPad0 = buf[19]
	c.ScreenWidth = u16(buf[:], 20)
	c.ScreenHeight = u16(buf[:], 22)
	c.SDKVersion = u16(buf[:], 24)
	c.MinorVersion = u16(buf[:], 26)
	c.ScreenLayout = buf[28]
	c.UIMode = buf[29]
	c.SmallestScreenWidthDp = u16(buf[:], 30)
	c.ScreenWidthDp = u16(buf[:], 32)
	c.ScreenHeightDp = u16(buf[:], 34)
	copy(c.LocaleScript[:], buf[36:40])
	copy(c.LocaleVariant[:], buf[40:48])
	c.ScreenLayout2 = buf[48]
	c.ColorMode = buf[49]
	c.ScreenConfigPad2 = u16(buf[:], 50)
	return c, nil
}

// Bytes returns the binary form of the config.
func (c *ResTableConfig) Bytes() []byte {
	b := make([]byte, resTableConfigSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], resTableConfigSize)
	le.PutUint16(b[4:], c.Mcc)
	le.PutUint16(b[6:], c.Mnc)
	copy(b[8:], c.Language[:])
	copy(b[10:], c.Country[:])
	b[12] = c.Orientation
	b[13] = c.Touchscreen
	le.PutUint16(b[14:], c.Density)
	b[16] = c.Keyboard
	b[17] = c.Navigation
	b[18] = c.InputFlags
	b[19] = c.InputPad0
	le.PutUint16(b[20:], c.ScreenWidth)
	le.PutUint16(b[22:], c.ScreenHeight)
	le.PutUint16(b[24:], c.SDKVersion)
	le.PutUint16(b[26:], c.MinorVersion)
	b[28] = c.ScreenLayout
	b[29] = c.UIMode
	le.PutUint16(b[30:], c.SmallestScreenWidthDp)
	le.PutUint16(b[32:], c.ScreenWidthDp)
	le.PutUint16(b[34:], c.ScreenHeightDp)
	copy(b[36:], c.LocaleScript[:])
	copy(b[40:], c.LocaleVariant[:])
	b[48] = c.ScreenLayout2
	b[49] = c.ColorMode
	le.PutUint16(b[50:], c.ScreenConfigPad2)
	return b
}

// Equal compares the binary fields, ignoring Size.
func (c *ResTableConfig) Equal(o *ResTableConfig) bool {
	return bytes.Equal(c.Bytes()[4:], o.Bytes()[4:]) && c.LocaleScriptWasComputed == o.LocaleScriptWasComputed
}

// Grouped views, matching the unions of the binary struct.

func (c *ResTableConfig) imsi() uint32 {
	return uint32(c.Mcc) | uint32(c.Mnc)<<16
}

func (c *ResTableConfig) locale() uint32 {
	return uint32(c.Language[0]) | uint32(c.Language[1])<<8 | uint32(c.Country[0])<<16 | uint32(c.Country[1])<<24
}

func (c *ResTableConfig) screenType() uint32 {
	return uint32(c.Orientation) | uint32(c.Touchscreen)<<8 | uint32(c.Density)<<16
}

func (c *ResTableConfig) input() uint32 {
	return uint32(c.Keyboard) | uint32(c.Navigation)<<8 | uint32(c.InputFlags)<<16 | uint32(c.InputPad0)<<24
}

func (c *ResTableConfig) screenSize() uint32 {
	return uint32(c.ScreenWidth) | uint32(c.ScreenHeight)<<16
}

func (c *ResTableConfig) version() uint32 {
	return uint32(c.SDKVersion) | uint32(c.MinorVersion)<<16
}

func (c *ResTableConfig) screenConfig() uint32 {
	return uint32(c.ScreenLayout) | uint32(c.UIMode)<<8 | uint32(c.SmallestScreenWidthDp)<<16
}

func (c *ResTableConfig) screenSizeDp() uint32 {
	return uint32(c.ScreenWidthDp) | uint32(c.ScreenHeightDp)<<16
}

func (c *ResTableConfig) screenConfig2() uint32 {
	return uint32(c.ScreenLayout2) | uint32(c.ColorMode)<<8 | uint32(c.ScreenConfigPad2)<<16
}

func cmpU32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare gives a total order over configs, used for sorting and to detect
// configs of identical priority.
func (c *ResTableConfig) Compare(o *ResTableConfig) int {
	if d := cmpU32(c.imsi(), o.imsi()); d != 0 {
		return d
	}
	if d := compareLocales(c, o); d != 0 {
		if d < 0 {
			return -1
		}
		return 1
	}
	for _, p := range [][2]uint32{
		{c.screenType(), o.screenType()},
		{c.input(), o.input()},
		{c.screenSize(), o.screenSize()},
		{c.version(), o.version()},
		{uint32(c.ScreenLayout), uint32(o.ScreenLayout)},
		{uint32(c.ScreenLayout2), uint32(o.ScreenLayout2)},
		{uint32(c.ColorMode), uint32(o.ColorMode)},
		{uint32(c.UIMode), uint32(o.UIMode)},
		{uint32(c.SmallestScreenWidthDp), uint32(o.SmallestScreenWidthDp)},
		{c.screenSizeDp(), o.screenSizeDp()},
	} {
		if d := cmpU32(p[0], p[1]); d != 0 {
			return d
		}
	}
	return 0
}

func compareLocales(l, r *ResTableConfig) int {
	if l.locale() != r.locale() {
		return cmpU32(l.locale(), r.locale())
	}

	var empty [4]uint8
	lScript, rScript := l.LocaleScript, r.LocaleScript
	if l.LocaleScriptWasComputed {
		lScript = empty
	}
	if r.LocaleScriptWasComputed {
		rScript = empty
	}
	if d := bytes.Compare(lScript[:], rScript[:]); d != 0 {
		return d
	}
	return bytes.Compare(l.LocaleVariant[:], r.LocaleVariant[:])
}

// Diff returns the Config* bits of the dimensions in which c and o differ.
func (c *ResTableConfig) Diff(o *ResTableConfig) uint32 {
	var diffs uint32
	if c.Mcc != o.Mcc {
		diffs |= ConfigMcc
	}
	if c.Mnc != o.Mnc {
		diffs |= ConfigMnc
	}
	if c.Orientation != o.Orientation {
		diffs |= ConfigOrientation
	}
	if c.Density != o.Density {
		diffs |= ConfigDensity
	}
	if c.Touchscreen != o.Touchscreen {
		diffs |= ConfigTouchscreen
	}
	if ((c.InputFlags ^ o.InputFlags) & (MaskKeysHidden | MaskNavHidden)) != 0 {
		diffs |= ConfigKeyboardHidden
	}
	if c.Keyboard != o.Keyboard {
		diffs |= ConfigKeyboard
	}
	if c.Navigation != o.Navigation {
		diffs |= ConfigNavigation
	}
	if c.screenSize() != o.screenSize() {
		diffs |= ConfigScreenSize
	}
	if c.version() != o.version() {
		diffs |= ConfigVersion
	}
	if ((c.ScreenLayout ^ o.ScreenLayout) & MaskLayoutDir) != 0 {
		diffs |= ConfigLayoutDir
	}
	if ((c.ScreenLayout ^ o.ScreenLayout) &^ MaskLayoutDir) != 0 {
		diffs |= ConfigScreenLayout
	}
	if ((c.ScreenLayout2 ^ o.ScreenLayout2) & MaskScreenRound) != 0 {
		diffs |= ConfigScreenRound
	}
	if ((c.ColorMode ^ o.ColorMode) & (MaskWideColorGamut | MaskHdr)) != 0 {
		diffs |= ConfigColorMode
	}
	if c.UIMode != o.UIMode {
		diffs |= ConfigUIMode
	}
	if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
		diffs |= ConfigSmallestScreenSize
	}
	if c.screenSizeDp() != o.screenSizeDp() {
		diffs |= ConfigScreenSize
	}
	if compareLocales(c, o) != 0 {
		diffs |= ConfigLocale
	}
	return diffs
}

// specificness helper: returns +1 if only c has the dimension set, -1 if only
// o has it, 0 otherwise.
func specific(mine, other uint32) int {
	if mine == other {
		return 0
	}
	if mine == 0 {
		return -1
	}
	if other == 0 {
		return 1
	}
	return 0
}

// IsMoreSpecificThan reports whether c sets more significant dimensions than
// o, without regard to any requested configuration.
func (c *ResTableConfig) IsMoreSpecificThan(o *ResTableConfig) bool {
	var steps []func() int

	steps = append(steps,
		func() int {
			if c.imsi() == 0 && o.imsi() == 0 {
				return 0
			}
			if d := specific(uint32(c.Mcc), uint32(o.Mcc)); d != 0 {
				return d
			}
			return specific(uint32(c.Mnc), uint32(o.Mnc))
		},
		func() int {
			return c.isLocaleMoreSpecificThan(o)
		},
		func() int {
			return specific(uint32(c.ScreenLayout&MaskLayoutDir), uint32(o.ScreenLayout&MaskLayoutDir))
		},
		func() int {
			return specific(uint32(c.SmallestScreenWidthDp), uint32(o.SmallestScreenWidthDp))
		},
		func() int {
			if d := specific(uint32(c.ScreenWidthDp), uint32(o.ScreenWidthDp)); d != 0 {
				return d
			}
			return specific(uint32(c.ScreenHeightDp), uint32(o.ScreenHeightDp))
		},
		func() int {
			if d := specific(uint32(c.ScreenLayout&MaskScreenSize), uint32(o.ScreenLayout&MaskScreenSize)); d != 0 {
				return d
			}
			return specific(uint32(c.ScreenLayout&MaskScreenLong), uint32(o.ScreenLayout&MaskScreenLong))
		},
		func() int {
			return specific(uint32(c.ScreenLayout2&MaskScreenRound), uint32(o.ScreenLayout2&MaskScreenRound))
		},
		func() int {
			if d := specific(uint32(c.ColorMode&MaskHdr), uint32(o.ColorMode&MaskHdr)); d != 0 {
				return d
			}
			return specific(uint32(c.ColorMode&MaskWideColorGamut), uint32(o.ColorMode&MaskWideColorGamut))
		},
		func() int {
			return specific(uint32(c.Orientation), uint32(o.Orientation))
		},
		func() int {
			if d := specific(uint32(c.UIMode&MaskUIModeType), uint32(o.UIMode&MaskUIModeType)); d != 0 {
				return d
			}
			return specific(uint32(c.UIMode&MaskUIModeNight), uint32(o.UIMode&MaskUIModeNight))
		},
		// density is never 'more specific' as the default just equals 160
		func() int {
			return specific(uint32(c.Touchscreen), uint32(o.Touchscreen))
		},
		func() int {
			if d := specific(uint32(c.InputFlags&MaskKeysHidden), uint32(o.InputFlags&MaskKeysHidden)); d != 0 {
				return d
			}
			if d := specific(uint32(c.InputFlags&MaskNavHidden), uint32(o.InputFlags&MaskNavHidden)); d != 0 {
				return d
			}
			if d := specific(uint32(c.Keyboard), uint32(o.Keyboard)); d != 0 {
				return d
			}
			return specific(uint32(c.Navigation), uint32(o.Navigation))
		},
		func() int {
			if d := specific(uint32(c.ScreenWidth), uint32(o.ScreenWidth)); d != 0 {
				return d
			}
			return specific(uint32(c.ScreenHeight), uint32(o.ScreenHeight))
		},
		func() int {
			if d := specific(uint32(c.SDKVersion), uint32(o.SDKVersion)); d != 0 {
				return d
			}
			return specific(uint32(c.MinorVersion), uint32(o.MinorVersion))
		},
	)

	for _, step := range steps {
		if d := step(); d != 0 {
			return d > 0
		}
	}
	return false
}

// IsBetterThan reports whether c is a better match for requested than o.
// Both c and o are expected to Match requested already. With a nil request
// this is IsMoreSpecificThan.
func (c *ResTableConfig) IsBetterThan(o *ResTableConfig, requested *ResTableConfig) bool {
	if requested == nil {
		return c.IsMoreSpecificThan(o)
	}
	r := requested

	if c.imsi() != 0 || o.imsi() != 0 {
		if c.Mcc != o.Mcc && r.Mcc != 0 {
			return c.Mcc != 0
		}
		if c.Mnc != o.Mnc && r.Mnc != 0 {
			return c.Mnc != 0
		}
	}

	if c.isLocaleBetterThan(o, r) {
		return true
	} else if o.isLocaleBetterThan(c, r) {
		return false
	}

	if c.ScreenLayout != 0 || o.ScreenLayout != 0 {
		if ((c.ScreenLayout^o.ScreenLayout)&MaskLayoutDir) != 0 && (r.ScreenLayout&MaskLayoutDir) != 0 {
			return (c.ScreenLayout & MaskLayoutDir) > (o.ScreenLayout & MaskLayoutDir)
		}
	}

	if c.SmallestScreenWidthDp != 0 || o.SmallestScreenWidthDp != 0 {
		// Larger configs were filtered by Match, so the largest is closest.
		if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
			return c.SmallestScreenWidthDp > o.SmallestScreenWidthDp
		}
	}

	if c.screenSizeDp() != 0 || o.screenSizeDp() != 0 {
		myDelta, otherDelta := 0, 0
		if r.ScreenWidthDp != 0 {
			myDelta += int(r.ScreenWidthDp) - int(c.ScreenWidthDp)
			otherDelta += int(r.ScreenWidthDp) - int(o.ScreenWidthDp)
		}
		if r.ScreenHeightDp != 0 {
			myDelta += int(r.ScreenHeightDp) - int(c.ScreenHeightDp)
			otherDelta += int(r.ScreenHeightDp) - int(o.ScreenHeightDp)
		}
		if myDelta != otherDelta {
			return myDelta < otherDelta
		}
	}

	if c.ScreenLayout != 0 || o.ScreenLayout != 0 {
		if ((c.ScreenLayout^o.ScreenLayout)&MaskScreenSize) != 0 && (r.ScreenLayout&MaskScreenSize) != 0 {
			// Undefined counts as normal, but only if the requested size is
			// at least normal; otherwise small is better than the default.
			mySL := c.ScreenLayout & MaskScreenSize
			oSL := o.ScreenLayout & MaskScreenSize
			fixedMySL, fixedOSL := mySL, oSL
			if (r.ScreenLayout & MaskScreenSize) >= ScreenSizeNormal {
				if fixedMySL == 0 {
					fixedMySL = ScreenSizeNormal
				}
				if fixedOSL == 0 {
					fixedOSL = ScreenSizeNormal
				}
			}
			if fixedMySL == fixedOSL {
				return mySL != 0
			}
			return fixedMySL > fixedOSL
		}
		if ((c.ScreenLayout^o.ScreenLayout)&MaskScreenLong) != 0 && (r.ScreenLayout&MaskScreenLong) != 0 {
			return (c.ScreenLayout & MaskScreenLong) != 0
		}
	}

	if c.ScreenLayout2 != 0 || o.ScreenLayout2 != 0 {
		if ((c.ScreenLayout2^o.ScreenLayout2)&MaskScreenRound) != 0 && (r.ScreenLayout2&MaskScreenRound) != 0 {
			return (c.ScreenLayout2 & MaskScreenRound) != 0
		}
	}

	if c.ColorMode != 0 || o.ColorMode != 0 {
		if ((c.ColorMode^o.ColorMode)&MaskHdr) != 0 && (r.ColorMode&MaskHdr) != 0 {
			return (c.ColorMode & MaskHdr) != 0
		}
		if ((c.ColorMode^o.ColorMode)&MaskWideColorGamut) != 0 && (r.ColorMode&MaskWideColorGamut) != 0 {
			return (c.ColorMode & MaskWideColorGamut) != 0
		}
	}

	if c.Orientation != o.Orientation && r.Orientation != 0 {
		return c.Orientation != 0
	}

	if c.UIMode != 0 || o.UIMode != 0 {
		diff := c.UIMode ^ o.UIMode
		if (diff&MaskUIModeType) != 0 && (r.UIMode&MaskUIModeType) != 0 {
			return (c.UIMode & MaskUIModeType) != 0
		}
		if (diff&MaskUIModeNight) != 0 && (r.UIMode&MaskUIModeNight) != 0 {
			return (c.UIMode & MaskUIModeNight) != 0
		}
	}

	if c.screenType() != 0 || o.screenType() != 0 {
		if c.Density != o.Density {
			return c.isDensityBetterThan(o, r)
		}
		if c.Touchscreen != o.Touchscreen && r.Touchscreen != 0 {
			return c.Touchscreen != 0
		}
	}

	if c.input() != 0 || o.input() != 0 {
		keysHidden := c.InputFlags & MaskKeysHidden
		oKeysHidden := o.InputFlags & MaskKeysHidden
		if keysHidden != oKeysHidden {
			if reqKeysHidden := r.InputFlags & MaskKeysHidden; reqKeysHidden != 0 {
				if keysHidden == 0 {
					return false
				}
				if oKeysHidden == 0 {
					return true
				}
				// KEYSHIDDEN_NO counts as KEYSHIDDEN_SOFT, an exact match
				// is more specific.
				if reqKeysHidden == keysHidden {
					return true
				}
				if reqKeysHidden == oKeysHidden {
					return false
				}
			}
		}

		navHidden := c.InputFlags & MaskNavHidden
		oNavHidden := o.InputFlags & MaskNavHidden
		if navHidden != oNavHidden && (r.InputFlags&MaskNavHidden) != 0 {
			if navHidden == 0 {
				return false
			}
			if oNavHidden == 0 {
				return true
			}
		}

		if c.Keyboard != o.Keyboard && r.Keyboard != 0 {
			return c.Keyboard != 0
		}
		if c.Navigation != o.Navigation && r.Navigation != 0 {
			return c.Navigation != 0
		}
	}

	if c.screenSize() != 0 || o.screenSize() != 0 {
		// An unspecified dimension yields a large delta, which prefers
		// configs that specify a size.
		myDelta, otherDelta := 0, 0
		if r.ScreenWidth != 0 {
			myDelta += int(r.ScreenWidth) - int(c.ScreenWidth)
			otherDelta += int(r.ScreenWidth) - int(o.ScreenWidth)
		}
		if r.ScreenHeight != 0 {
			myDelta += int(r.ScreenHeight) - int(c.ScreenHeight)
			otherDelta += int(r.ScreenHeight) - int(o.ScreenHeight)
		}
		if myDelta != otherDelta {
			return myDelta < otherDelta
		}
	}

	if c.version() != 0 || o.version() != 0 {
		if c.SDKVersion != o.SDKVersion && r.SDKVersion != 0 {
			return c.SDKVersion > o.SDKVersion
		}
		if c.MinorVersion != o.MinorVersion && r.MinorVersion != 0 {
			return c.MinorVersion != 0
		}
	}

	return false
}

func (c *ResTableConfig) isDensityBetterThan(o *ResTableConfig, r *ResTableConfig) bool {
	thisDensity := int(c.Density)
	if thisDensity == 0 {
		thisDensity = DensityMedium
	}
	otherDensity := int(o.Density)
	if otherDensity == 0 {
		otherDensity = DensityMedium
	}

	// DENSITY_ANY always wins over scaling a bucket.
	if thisDensity == DensityAny {
		return true
	} else if otherDensity == DensityAny {
		return false
	}

	requestedDensity := int(r.Density)
	if requestedDensity == 0 || requestedDensity == DensityAny {
		requestedDensity = DensityMedium
	}

	// Any density can be scaled, scaling down is preferred.
	h, l := thisDensity, otherDensity
	imBigger := true
	if l > h {
		h, l = l, h
		imBigger = false
	}

	if requestedDensity >= h {
		return imBigger
	}
	if l >= requestedDensity {
		return !imBigger
	}
	// scaling down is 2x better than up
	if (2*l-requestedDensity)*h > requestedDensity*requestedDensity {
		return !imBigger
	}
	return imBigger
}

// Match reports whether every dimension c specifies is compatible with
// settings.
func (c *ResTableConfig) Match(settings *ResTableConfig) bool {
	if c.imsi() != 0 {
		if c.Mcc != 0 && c.Mcc != settings.Mcc {
			return false
		}
		if c.Mnc != 0 && c.Mnc != settings.Mnc {
			return false
		}
	}

	if c.locale() != 0 && !c.matchLocale(settings) {
		return false
	}

	if c.screenConfig() != 0 {
		layoutDir := c.ScreenLayout & MaskLayoutDir
		if layoutDir != 0 && layoutDir != settings.ScreenLayout&MaskLayoutDir {
			return false
		}

		// Sizes for larger screens than the setting never match.
		screenSize := c.ScreenLayout & MaskScreenSize
		if screenSize != 0 && screenSize > settings.ScreenLayout&MaskScreenSize {
			return false
		}

		screenLong := c.ScreenLayout & MaskScreenLong
		if screenLong != 0 && screenLong != settings.ScreenLayout&MaskScreenLong {
			return false
		}

		uiModeType := c.UIMode & MaskUIModeType
		if uiModeType != 0 && uiModeType != settings.UIMode&MaskUIModeType {
			return false
		}

		uiModeNight := c.UIMode & MaskUIModeNight
		if uiModeNight != 0 && uiModeNight != settings.UIMode&MaskUIModeNight {
			return false
		}

		if c.SmallestScreenWidthDp != 0 && c.SmallestScreenWidthDp > settings.SmallestScreenWidthDp {
			return false
		}
	}

	if c.screenConfig2() != 0 {
		screenRound := c.ScreenLayout2 & MaskScreenRound
		if screenRound != 0 && screenRound != settings.ScreenLayout2&MaskScreenRound {
			return false
		}

		hdr := c.ColorMode & MaskHdr
		if hdr != 0 && hdr != settings.ColorMode&MaskHdr {
			return false
		}

		wideColorGamut := c.ColorMode & MaskWideColorGamut
		if wideColorGamut != 0 && wideColorGamut != settings.ColorMode&MaskWideColorGamut {
			return false
		}
	}

	if c.screenSizeDp() != 0 {
		if c.ScreenWidthDp != 0 && c.ScreenWidthDp > settings.ScreenWidthDp {
			return false
		}
		if c.ScreenHeightDp != 0 && c.ScreenHeightDp > settings.ScreenHeightDp {
			return false
		}
	}

	if c.screenType() != 0 {
		if c.Orientation != 0 && c.Orientation != settings.Orientation {
			return false
		}
		// density always matches, it can be scaled
		if c.Touchscreen != 0 && c.Touchscreen != settings.Touchscreen {
			return false
		}
	}

	if c.input() != 0 {
		keysHidden := c.InputFlags & MaskKeysHidden
		setKeysHidden := settings.InputFlags & MaskKeysHidden
		if keysHidden != 0 && keysHidden != setKeysHidden {
			// KEYSHIDDEN_NO also matches the more recent KEYSHIDDEN_SOFT.
			if keysHidden != KeysHiddenNo || setKeysHidden != KeysHiddenSoft {
				return false
			}
		}

		navHidden := c.InputFlags & MaskNavHidden
		if navHidden != 0 && navHidden != settings.InputFlags&MaskNavHidden {
			return false
		}
		if c.Keyboard != 0 && c.Keyboard != settings.Keyboard {
			return false
		}
		if c.Navigation != 0 && c.Navigation != settings.Navigation {
			return false
		}
	}

	if c.screenSize() != 0 {
		if c.ScreenWidth != 0 && c.ScreenWidth > settings.ScreenWidth {
			return false
		}
		if c.ScreenHeight != 0 && c.ScreenHeight > settings.ScreenHeight {
			return false
		}
	}

	if c.version() != 0 {
		if c.SDKVersion != 0 && c.SDKVersion > settings.SDKVersion {
			return false
		}
		if c.MinorVersion != 0 && c.MinorVersion != settings.MinorVersion {
			return false
		}
	}

	return true
}

// String returns the config in resource directory qualifier form, e.g.
// "de-rDE-land-xhdpi-v21". The default config is "default".
func (c *ResTableConfig) String() string {
	var parts []string

	if c.Mcc != 0 {
		parts = append(parts, fmt.Sprintf("mcc%d", c.Mcc))
		if c.Mnc != 0 {
			parts = append(parts, fmt.Sprintf("mnc%d", c.Mnc))
		}
	}

	if loc := c.qualifierLocale(); loc != "" {
		parts = append(parts, loc)
	}

	switch c.ScreenLayout & MaskLayoutDir {
	case LayoutDirLTR:
		parts = append(parts, "ldltr")
	case LayoutDirRTL:
		parts = append(parts, "ldrtl")
	}
	if c.SmallestScreenWidthDp != 0 {
		parts = append(parts, fmt.Sprintf("sw%ddp", c.SmallestScreenWidthDp))
	}
	if c.ScreenWidthDp != 0 {
		parts = append(parts, fmt.Sprintf("w%ddp", c.ScreenWidthDp))
	}
	if c.ScreenHeightDp != 0 {
		parts = append(parts, fmt.Sprintf("h%ddp", c.ScreenHeightDp))
	}
	if s := lookupName(c.ScreenLayout&MaskScreenSize, map[uint8]string{
		ScreenSizeSmall: "small", ScreenSizeNormal: "normal", ScreenSizeLarge: "large", ScreenSizeXLarge: "xlarge",
	}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.ScreenLayout&MaskScreenLong, map[uint8]string{ScreenLongNo: "notlong", ScreenLongYes: "long"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.ScreenLayout2&MaskScreenRound, map[uint8]string{ScreenRoundNo: "notround", ScreenRoundYes: "round"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.ColorMode&MaskWideColorGamut, map[uint8]string{WideColorGamutNo: "nowidecg", WideColorGamutYes: "widecg"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.ColorMode&MaskHdr, map[uint8]string{HdrNo: "lowdr", HdrYes: "highdr"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.Orientation, map[uint8]string{OrientationPort: "port", OrientationLand: "land", OrientationSquare: "square"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.UIMode&MaskUIModeType, map[uint8]string{
		UIModeTypeDesk: "desk", UIModeTypeCar: "car", UIModeTypeTelevision: "television",
		UIModeTypeAppliance: "appliance", UIModeTypeWatch: "watch", UIModeTypeVRHeadset: "vrheadset",
	}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.UIMode&MaskUIModeNight, map[uint8]string{UIModeNightNo: "notnight", UIModeNightYes: "night"}); s != "" {
		parts = append(parts, s)
	}
	if c.Density != DensityDefault {
		parts = append(parts, densityName(c.Density))
	}
	if s := lookupName(c.Touchscreen, map[uint8]string{TouchscreenNoTouch: "notouch", TouchscreenStylus: "stylus", TouchscreenFinger: "finger"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.InputFlags&MaskKeysHidden, map[uint8]string{KeysHiddenNo: "keysexposed", KeysHiddenYes: "keyshidden", KeysHiddenSoft: "keyssoft"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.Keyboard, map[uint8]string{KeyboardNoKeys: "nokeys", KeyboardQwerty: "qwerty", Keyboard12Key: "12key"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.InputFlags&MaskNavHidden, map[uint8]string{NavHiddenNo: "navexposed", NavHiddenYes: "navhidden"}); s != "" {
		parts = append(parts, s)
	}
	if s := lookupName(c.Navigation, map[uint8]string{
		NavigationNoNav: "nonav", NavigationDpad: "dpad", NavigationTrackball: "trackball", NavigationWheel: "wheel",
	}); s != "" {
		parts = append(parts, s)
	}
	if c.ScreenWidth != 0 && c.ScreenHeight != 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", c.ScreenWidth, c.ScreenHeight))
	}
	if c.SDKVersion != 0 {
		parts = append(parts, fmt.Sprintf("v%d", c.SDKVersion))
	}

	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, "-")
}

func lookupName(v uint8, names map[uint8]string) string {
	return names[v]
}

func densityName(d uint16) string {
	switch d {
	case DensityLow:
		return "ldpi"
	case DensityMedium:
		return "mdpi"
	case DensityTV:
		return "tvdpi"
	case DensityHigh:
		return "hdpi"
	case DensityXHigh:
		return "xhdpi"
	case DensityXXHigh:
		return "xxhdpi"
	case DensityXXXHigh:
		return "xxxhdpi"
	case DensityAny:
		return "anydpi"
	case DensityNone:
		return "nodpi"
	}
	return fmt.Sprintf("%ddpi", d)
}
