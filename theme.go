package apkres

import (
	"fmt"
	"sync"
)

const maxAttributeHops = 20

type themeEntry struct {
	stringBlock   int
	typeSpecFlags uint32
	value         Value
}

type themePackage struct {
	types [maxTypes][]themeEntry
}

func (p *themePackage) clone() *themePackage {
	c := &themePackage{}
	for i, entries := range p.types {
		if entries != nil {
			c.types[i] = append([]themeEntry(nil), entries...)
		}
	}
	return c
}

// Theme is a stack of styles applied on top of each other, resolving
// attribute references ("?attr/foo") to values.
type Theme struct {
	table *ResourceTable

	mu            sync.Mutex
	packages      [256]*themePackage // by package group index
	typeSpecFlags uint32
}

func (t *ResourceTable) NewTheme() *Theme {
	return &Theme{table: t}
}

func (th *Theme) Table() *ResourceTable {
	return th.table
}

// ApplyStyle copies the attributes of the style resID into the theme.
// Without force only attributes not set yet are written.
func (th *Theme) ApplyStyle(resID uint32, force bool) error {
	th.mu.Lock()
	defer th.mu.Unlock()

	t := th.table
	t.lock.Lock()
	defer t.lock.Unlock()

	bag, err := t.getBagLocked(resID)
	if err != nil {
		return err
	}

	th.typeSpecFlags |= bag.typeSpecFlags

	for _, be := range bag.entries {
		attr := be.Name
		pidx := t.resourcePackageIndex(attr)
		if pidx < 0 {
			warn("style contains key with bad package", "resid", fmt.Sprintf("0x%08x", attr))
			continue
		}
		typeIndex := int((attr>>16)&0xff) - 1
		if typeIndex < 0 {
			warn("style contains key with bad type", "resid", fmt.Sprintf("0x%08x", attr))
			continue
		}

		pkg := th.packages[pidx]
		if pkg == nil {
			pkg = &themePackage{}
			th.packages[pidx] = pkg
		}

		entries := pkg.types[typeIndex]
		if entries == nil {
			count := 0
			if typeList := t.packageGroups[pidx].types[typeIndex]; len(typeList) != 0 {
				count = typeList[0].entryCount
			}
			entries = make([]themeEntry, count)
			pkg.types[typeIndex] = entries
		}

		e := int(attr & 0xffff)
		if e >= len(entries) {
			warn("style contains key with bad entry", "resid", fmt.Sprintf("0x%08x", attr))
			continue
		}

		cur := &entries[e]
		if force || (cur.value.DataType == AttrTypeNull && cur.value.Data != DataNullEmpty) {
			cur.stringBlock = be.StringBlock
			cur.typeSpecFlags |= bag.typeSpecFlags
			cur.value = be.Value
		}
	}
	return nil
}

// SetTo replaces the theme content with a copy of other. Themes of a
// different table only share the first package.
func (th *Theme) SetTo(other *Theme) error {
	if th == other {
		return nil
	}

	other.mu.Lock()
	var packages [256]*themePackage
	for i, p := range other.packages {
		if p == nil || (other.table != th.table && i != 0) {
			continue
		}
		packages[i] = p.clone()
	}
	flags := other.typeSpecFlags
	other.mu.Unlock()

	th.mu.Lock()
	defer th.mu.Unlock()
	th.packages = packages
	th.typeSpecFlags = flags
	return nil
}

// GetAttribute returns the value of the attribute resID in the theme,
// following attribute to attribute references.
func (th *Theme) GetAttribute(resID uint32) (Resource, error) {
	th.mu.Lock()
	defer th.mu.Unlock()

	var typeSpecFlags uint32
	for hops := maxAttributeHops; ; {
		pidx := th.table.resourcePackageIndex(resID)
		typeIndex := int((resID>>16)&0xff) - 1
		e := int(resID & 0xffff)

		if pidx < 0 || typeIndex < 0 || th.packages[pidx] == nil {
			break
		}
		entries := th.packages[pidx].types[typeIndex]
		if e >= len(entries) {
			break
		}

		te := entries[e]
		typeSpecFlags |= te.typeSpecFlags

		if te.value.DataType == AttrTypeAttribute {
			if hops > 0 {
				hops--
				resID = te.value.Data
				continue
			}
			warn("too many attribute references", "resid", fmt.Sprintf("0x%08x", resID))
			return Resource{}, ErrTooManyAttributeRefs
		}
		if te.value.DataType != AttrTypeNull || te.value.Data == DataNullEmpty {
			return Resource{
				Value:       te.value,
				StringBlock: te.stringBlock,
				SpecFlags:   typeSpecFlags,
			}, nil
		}
		break
	}
	return Resource{SpecFlags: typeSpecFlags}, badIndex("attribute 0x%08x not found in theme", resID)
}

// ResolveAttributeReference resolves res through the theme if it is an
// attribute, then follows references through the table.
func (th *Theme) ResolveAttributeReference(res Resource) (Resource, uint32, error) {
	if res.Value.DataType == AttrTypeAttribute {
		attr, err := th.GetAttribute(res.Value.Data)
		if err != nil {
			return res, 0, err
		}
		attr.SpecFlags |= res.SpecFlags
		res = attr
	}
	return th.table.ResolveReference(res, 0)
}

// ChangingConfigurations returns the type spec flags of everything applied.
func (th *Theme) ChangingConfigurations() uint32 {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.typeSpecFlags
}

func (th *Theme) Clear() {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.packages = [256]*themePackage{}
	th.typeSpecFlags = 0
}
