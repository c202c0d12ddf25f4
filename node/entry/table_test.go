package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAllocatesIncreasingIDs(t *testing.T) {
	table := NewTable()
	first, err := table.Insert(NewEntryData("/a", 0, DoubleValue(1)))
	require.NoError(t, err)
	second, err := table.Insert(NewEntryData("/b", 0, DoubleValue(2)))
	require.NoError(t, err)

	assert.Equal(t, uint16(0), first)
	assert.Equal(t, uint16(1), second)
	assert.Equal(t, 2, table.Len())
}

func TestInsertMustRejectDuplicateName(t *testing.T) {
	table := NewTable()
	id, err := table.Insert(NewEntryData("/a", 0, DoubleValue(1)))
	require.NoError(t, err)

	existingID, err := table.Insert(NewEntryData("/a", 0, StringValue("x")))
	require.Error(t, err)
	alreadyExists, ok := err.(*EntryAlreadyExistsError)
	require.True(t, ok)
	assert.Equal(t, id, alreadyExists.ID)
	assert.Equal(t, id, existingID)
}

func TestInsertMustReuseFreedIDsAfterWrapAround(t *testing.T) {
	table := NewTable()
	table.nextID = NewEntryID - 1
	last, err := table.Insert(NewEntryData("/last", 0, BooleanValue(true)))
	require.NoError(t, err)
	assert.Equal(t, NewEntryID-1, last)

	wrapped, err := table.Insert(NewEntryData("/wrapped", 0, BooleanValue(true)))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), wrapped)
}

func TestLookupAndGet(t *testing.T) {
	table := NewTable()
	id, _ := table.Insert(NewEntryData("/robot/speed", FlagPersistent, DoubleValue(3.5)))

	found, exists := table.Lookup("/robot/speed")
	require.True(t, exists)
	assert.Equal(t, id, found)

	data, exists := table.Get(id)
	require.True(t, exists)
	assert.Equal(t, "/robot/speed", data.Name)
	assert.True(t, data.IsPersistent())
	assert.Equal(t, uint16(1), data.Seqnum)

	_, exists = table.Lookup("/robot/other")
	assert.False(t, exists)
}

func TestUpdateRequiresMatchingTypeAndNewerSeqnum(t *testing.T) {
	table := NewTable()
	id, _ := table.Insert(NewEntryData("/x", 0, DoubleValue(1)))

	_, err := table.Update(id, StringValue("nope"), 2)
	assert.IsType(t, &TypeMismatchError{}, err)

	_, err = table.Update(id, DoubleValue(2), 1)
	assert.IsType(t, &StaleSequenceNumberError{}, err)

	updated, err := table.Update(id, DoubleValue(2), 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, updated.Value.Double)
	assert.Equal(t, uint16(2), updated.Seqnum)

	_, err = table.Update(42, DoubleValue(2), 3)
	assert.IsType(t, &EntryNotFoundError{}, err)
}

func TestGetReturnsCopies(t *testing.T) {
	table := NewTable()
	id, _ := table.Insert(NewEntryData("/arr", 0, DoubleArrayValue([]float64{1, 2})))

	data, _ := table.Get(id)
	data.Value.DoubleArray = append(data.Value.DoubleArray, 3)
	data.Name = "/changed"

	stored, _ := table.Get(id)
	assert.Equal(t, "/arr", stored.Name)
	assert.Len(t, stored.Value.DoubleArray, 2)
}

func TestPutReplacesByIDAndName(t *testing.T) {
	table := NewTable()
	assert.False(t, table.Put(5, NewEntryData("/a", 0, DoubleValue(1))))
	assert.True(t, table.Put(5, NewEntryData("/b", 0, DoubleValue(2))))

	_, exists := table.Lookup("/a")
	assert.False(t, exists)

	// the same name arriving under another ID evicts the old one
	assert.False(t, table.Put(7, NewEntryData("/b", 0, DoubleValue(3))))
	_, exists = table.Get(5)
	assert.False(t, exists)
	id, exists := table.Lookup("/b")
	require.True(t, exists)
	assert.Equal(t, uint16(7), id)
	assert.Equal(t, 1, table.Len())
}

func TestDeleteAndClear(t *testing.T) {
	table := NewTable()
	a, _ := table.Insert(NewEntryData("/a", 0, DoubleValue(1)))
	table.Insert(NewEntryData("/b", 0, DoubleValue(2)))
	table.Insert(NewEntryData("/c", 0, DoubleValue(3)))

	removed, exists := table.Delete(a)
	require.True(t, exists)
	assert.Equal(t, "/a", removed.Name)
	_, exists = table.Delete(a)
	assert.False(t, exists)

	cleared := table.Clear()
	require.Len(t, cleared, 2)
	assert.Equal(t, "/b", cleared[0].Name)
	assert.Equal(t, "/c", cleared[1].Name)
	assert.Equal(t, 0, table.Len())
}

func TestAscendVisitsOnlyPrefixInNameOrder(t *testing.T) {
	table := NewTable()
	for _, name := range []string{"/vision/y", "/drive/left", "/vision/x", "/drive/right", "/visionary"} {
		_, err := table.Insert(NewEntryData(name, 0, BooleanValue(true)))
		require.NoError(t, err)
	}

	var names []string
	table.Ascend("/vision/", func(e Entry) bool {
		names = append(names, e.Name)
		return true
	})
	assert.Equal(t, []string{"/vision/x", "/vision/y"}, names)

	var all []string
	table.Ascend("", func(e Entry) bool {
		all = append(all, e.Name)
		return len(all) < 2
	})
	assert.Equal(t, []string{"/drive/left", "/drive/right"}, all)
}

func TestSeqnumNewerWrapsAround(t *testing.T) {
	assert.True(t, SeqnumNewer(2, 1))
	assert.False(t, SeqnumNewer(1, 2))
	assert.False(t, SeqnumNewer(7, 7))
	assert.True(t, SeqnumNewer(0, 0xFFFF))
	assert.True(t, SeqnumNewer(10, 0xFFF0))
	assert.False(t, SeqnumNewer(0xFFF0, 10))
}

func TestCloneKeepsNilAndEmptySlices(t *testing.T) {
	nilArray := NewEntryData("/nil", 0, EntryValue{Type: TypeDoubleArray})
	cloned := nilArray.Clone()
	assert.Nil(t, cloned.Value.DoubleArray)
	assert.Nil(t, cloned.Value.Raw)
	assert.Equal(t, nilArray, cloned)

	empty := NewEntryData("/empty", 0, StringArrayValue([]string{}))
	cloned = empty.Clone()
	require.NotNil(t, cloned.Value.StringArray)
	assert.Len(t, cloned.Value.StringArray, 0)
	assert.Equal(t, empty, cloned)
}

func TestCloneDoesNotShareArrays(t *testing.T) {
	original := NewEntryData("/arr", 0, DoubleArrayValue([]float64{1, 2}))
	cloned := original.Clone()
	cloned.Value.DoubleArray[0] = 42
	assert.Equal(t, []float64{1, 2}, original.Value.DoubleArray)

	raw := NewEntryData("/raw", 0, RawValue([]byte{1}))
	clonedRaw := raw.Clone()
	clonedRaw.Value.Raw[0] = 9
	assert.Equal(t, []byte{1}, raw.Value.Raw)
}
