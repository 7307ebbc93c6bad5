package apkres

import (
	"fmt"

	"github.com/pkg/errors"
)

// BagEntry is one attribute of a resolved bag.
type BagEntry struct {
	// Index of the string pool string values refer to, see StringBlock.
	StringBlock int
	Name        uint32
	Value       Value
}

type bagSet struct {
	entries       []BagEntry
	typeSpecFlags uint32
}

// bagInProgress marks a bag being computed; finding it again means a cycle.
var bagInProgress = &bagSet{}

func bagKey(typeIndex, entryIndex int) uint32 {
	return uint32(typeIndex)<<16 | uint32(entryIndex)
}

// isInternalID reports whether resID is a framework-internal attribute such
// as the bag size or min/max keys, not a real resource.
func isInternalID(resID uint32) bool {
	return resID&0xffff0000 != 0 && resID&0x00ff0000 == 0
}

// GetBag returns the attributes of the bag resID, parents merged in, sorted
// by attribute id, along with the aggregated type spec flags.
func (t *ResourceTable) GetBag(resID uint32) ([]BagEntry, uint32, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	set, err := t.getBagLocked(resID)
	if err != nil {
		return nil, 0, err
	}
	return append([]BagEntry(nil), set.entries...), set.typeSpecFlags, nil
}

func (t *ResourceTable) getBagLocked(resID uint32) (*bagSet, error) {
	g, typeIndex, entryIndex, err := t.splitResID(resID)
	if err != nil {
		return nil, err
	}

	typeList := g.types[typeIndex]
	if len(typeList) == 0 {
		return nil, badIndex("type identifier 0x%x does not exist", typeIndex+1)
	}
	if entryIndex >= typeList[0].entryCount {
		return nil, badIndex("entry identifier 0x%x is larger than entry count 0x%x", entryIndex, typeList[0].entryCount)
	}

	key := bagKey(typeIndex, entryIndex)
	if set, prs := g.bags[key]; prs {
		if set == bagInProgress {
			warn("attempt to retrieve bag which is invalid or in a cycle", "resid", fmt.Sprintf("0x%08x", resID))
			return nil, badIndex("bag 0x%08x is invalid or in a cycle", resID)
		}
		return set, nil
	}

	if g.bags == nil {
		g.bags = make(map[uint32]*bagSet)
	}
	// Left in place on failure, so broken bags fail fast from now on.
	g.bags[key] = bagInProgress

	entry, err := t.getEntry(g, typeIndex, entryIndex, &t.params)
	if err != nil {
		return nil, err
	}

	var parent uint32
	var items []MapItem
	if cv, ok := entry.Body.(ComplexValue); ok {
		parent = cv.Parent
		items = cv.Items
	}

	set := &bagSet{}
	if parent != 0 {
		resolvedParent := parent
		// Parents are not Res_values, so a dynamic reference can't be told
		// apart from a plain one.
		if err := g.dynamicRefTable.LookupResourceID(&resolvedParent); err != nil {
			return nil, errors.Wrapf(ErrUnknown, "failed resolving bag parent id 0x%08x", parent)
		}

		if parentSet, err := t.getBagLocked(resolvedParent); err == nil {
			set.entries = make([]BagEntry, len(parentSet.entries), len(parentSet.entries)+len(items))
			copy(set.entries, parentSet.entries)
			set.typeSpecFlags = parentSet.typeSpecFlags
		}
	}
	set.typeSpecFlags |= entry.SpecFlags

	stringBlock := t.blockIndex(entry.pkg.header)
	cur := 0
	for _, item := range items {
		name := item.Name
		if !isInternalID(name) {
			if err := g.dynamicRefTable.LookupResourceID(&name); err != nil {
				return nil, errors.Wrapf(ErrUnknown, "failed resolving map name 0x%08x", name)
			}
		}

		for cur < len(set.entries) && set.entries[cur].Name < name {
			cur++
		}

		be := BagEntry{
			StringBlock: stringBlock,
			Name:        name,
			Value:       item.Value,
		}
		if err := g.dynamicRefTable.LookupResourceValue(&be.Value); err != nil {
			return nil, errors.Wrapf(ErrUnknown, "reference item 0x%08x in bag could not be resolved", be.Value.Data)
		}

		switch {
		case cur == len(set.entries):
			set.entries = append(set.entries, be)
		case set.entries[cur].Name == name:
			set.entries[cur] = be
		default:
			set.entries = append(set.entries, BagEntry{})
			copy(set.entries[cur+1:], set.entries[cur:])
			set.entries[cur] = be
		}
		cur++
	}

	g.bags[key] = set
	return set, nil
}
