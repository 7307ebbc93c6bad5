package apkres

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeApplyStyle(t *testing.T) {
	table := loadAppTable(t)
	th := table.NewTheme()
	assert.Same(t, table, th.Table())

	require.NoError(t, th.ApplyStyle(styleDerived, false))
	assert.Equal(t, uint32(ConfigUIMode), th.ChangingConfigurations())

	res, err := th.GetAttribute(attrTextColor)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorWhite), res.Value.Data)
	assert.Equal(t, uint32(ConfigUIMode), res.SpecFlags)

	// inherited from the parent style
	res, err = th.GetAttribute(attrColorPrimary)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorBlue), res.Value.Data)

	// ?colorPrimary
	res, err = th.GetAttribute(attrLinkColor)
	require.NoError(t, err)
	assert.Equal(t, uint8(AttrTypeIntColorArgb8), res.Value.DataType)
	assert.Equal(t, uint32(colorBlue), res.Value.Data)
}

func TestThemeForce(t *testing.T) {
	table := loadAppTable(t)
	th := table.NewTheme()

	require.NoError(t, th.ApplyStyle(styleDerived, false))
	require.NoError(t, th.ApplyStyle(styleBase, false))

	res, err := th.GetAttribute(attrTextColor)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorWhite), res.Value.Data)

	require.NoError(t, th.ApplyStyle(styleBase, true))
	res, err = th.GetAttribute(attrTextColor)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorBlack), res.Value.Data)

	// not in Base, left alone
	res, err = th.GetAttribute(attrLinkColor)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorBlue), res.Value.Data)
}

func TestThemeAttributeCycle(t *testing.T) {
	table := loadAppTable(t)
	th := table.NewTheme()
	require.NoError(t, th.ApplyStyle(styleCyclic, false))

	_, err := th.GetAttribute(attrTextColor)
	assert.Equal(t, ErrTooManyAttributeRefs, err)
	assert.True(t, errors.Is(err, ErrBadIndex))
}

func TestThemeMissingAttribute(t *testing.T) {
	table := loadAppTable(t)
	th := table.NewTheme()

	_, err := th.GetAttribute(attrTextColor)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

	require.NoError(t, th.ApplyStyle(styleBase, false))
	_, err = th.GetAttribute(attrLinkColor)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

	_, err = th.GetAttribute(0x05010000)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

	err = th.ApplyStyle(0x7f030063, false)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)
}

func TestThemeSetToAndClear(t *testing.T) {
	table := loadAppTable(t)
	th := table.NewTheme()
	require.NoError(t, th.ApplyStyle(styleDerived, false))

	cp := table.NewTheme()
	require.NoError(t, cp.SetTo(th))
	require.NoError(t, cp.SetTo(cp))

	th.Clear()
	assert.Equal(t, uint32(0), th.ChangingConfigurations())
	_, err := th.GetAttribute(attrTextColor)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

	res, err := cp.GetAttribute(attrTextColor)
	require.NoError(t, err)
	assert.Equal(t, uint32(colorWhite), res.Value.Data)
	assert.Equal(t, uint32(ConfigUIMode), cp.ChangingConfigurations())

	// changes to the copy don't leak back
	require.NoError(t, cp.ApplyStyle(styleBase, true))
	_, err = th.GetAttribute(attrColorPrimary)
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)
}

func TestThemeResolveAttributeReference(t *testing.T) {
	table := loadAppTable(t)
	table.SetParameters(requestConfig(t, "de"))
	th := table.NewTheme()
	require.NoError(t, th.ApplyStyle(styleDerived, false))

	res, _, err := th.ResolveAttributeReference(Resource{
		Value: Value{Size: valueSize, DataType: AttrTypeAttribute, Data: attrColorPrimary},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(colorBlue), res.Value.Data)

	alias, err := table.GetResource(stringAlias, false, 0)
	require.NoError(t, err)
	res, lastRef, err := th.ResolveAttributeReference(alias)
	require.NoError(t, err)
	assert.Equal(t, uint32(stringAppName), lastRef)
	assert.Equal(t, "Beispiel", resourceString(t, table, res))

	_, _, err = th.ResolveAttributeReference(Resource{
		Value: Value{Size: valueSize, DataType: AttrTypeAttribute, Data: 0x7f010063},
	})
	assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)
}
