package apkres

import (
	"fmt"
	"math"
	"strconv"
)

// Value data types (Res_value::dataType).
const (
	AttrTypeNull             = 0x00
	AttrTypeReference        = 0x01
	AttrTypeAttribute        = 0x02
	AttrTypeString           = 0x03
	AttrTypeFloat            = 0x04
	AttrTypeDimension        = 0x05
	AttrTypeFraction         = 0x06
	AttrTypeDynamicReference = 0x07
	AttrTypeDynamicAttribute = 0x08
	AttrTypeIntDec           = 0x10
	AttrTypeIntHex           = 0x11
	AttrTypeIntBool          = 0x12

	AttrTypeIntColorArgb8 = 0x1c
	AttrTypeIntColorRgb8  = 0x1d
	AttrTypeIntColorArgb4 = 0x1e
	AttrTypeIntColorRgb4  = 0x1f

	AttrTypeFirstInt = AttrTypeIntDec
	AttrTypeLastInt  = AttrTypeIntColorRgb4
)

// Data of a TYPE_NULL value.
const (
	DataNullUndefined = 0
	DataNullEmpty     = 1
)

const valueSize = 8

// Value is a typed resource value (Res_value).
type Value struct {
	Size     uint16
	Res0     uint8
	DataType uint8
	Data     uint32
}

func parseValue(data []byte, off int) Value {
	return Value{
		Size:     u16(data, off),
		Res0:     u8(data, off+2),
		DataType: u8(data, off+3),
		Data:     u32(data, off+4),
	}
}

// IsReference reports whether the value points to another resource.
func (v Value) IsReference() bool {
	return v.DataType == AttrTypeReference || v.DataType == AttrTypeDynamicReference
}

// Format renders the value; strings are looked up in pool, which may be nil.
func (v Value) Format(pool *StringPool) (string, error) {
	switch v.DataType {
	case AttrTypeNull:
		if v.Data == DataNullEmpty {
			return "@empty", nil
		}
		return "@null", nil
	case AttrTypeString:
		if pool == nil {
			return "", fmt.Errorf("no string pool for string value %d", v.Data)
		}
		return pool.StringAt(v.Data)
	case AttrTypeReference, AttrTypeDynamicReference:
		return fmt.Sprintf("@0x%08x", v.Data), nil
	case AttrTypeAttribute, AttrTypeDynamicAttribute:
		return fmt.Sprintf("?0x%08x", v.Data), nil
	case AttrTypeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(v.Data)), 'g', -1, 32), nil
	case AttrTypeIntBool:
		return strconv.FormatBool(v.Data != 0), nil
	case AttrTypeIntHex:
		return fmt.Sprintf("0x%x", v.Data), nil
	case AttrTypeIntColorArgb8, AttrTypeIntColorRgb8, AttrTypeIntColorArgb4, AttrTypeIntColorRgb4:
		return fmt.Sprintf("#%08x", v.Data), nil
	case AttrTypeDimension:
		return formatComplex(v.Data, false), nil
	case AttrTypeFraction:
		return formatComplex(v.Data, true), nil
	default:
		return strconv.FormatInt(int64(int32(v.Data)), 10), nil
	}
}

var (
	dimensionUnits = [...]string{"px", "dp", "sp", "pt", "in", "mm"}
	fractionUnits  = [...]string{"%", "%p"}
	radixMults     = [...]float64{1.0 / (1 << 8), 1.0 / (1 << 15), 1.0 / (1 << 23), 1.0 / (1 << 31)}
)

func formatComplex(data uint32, fraction bool) string {
	mantissa := float64(int32(data&0xffffff00)) // sign-extended 24 bits, still shifted by 8
	value := mantissa * radixMults[(data>>4)&0x3]
	unit := int(data & 0xf)

	if fraction {
		value *= 100
		if unit < len(fractionUnits) {
			return strconv.FormatFloat(value, 'g', -1, 32) + fractionUnits[unit]
		}
	} else if unit < len(dimensionUnits) {
		return strconv.FormatFloat(value, 'g', -1, 32) + dimensionUnits[unit]
	}
	return fmt.Sprintf("0x%08x", data)
}
