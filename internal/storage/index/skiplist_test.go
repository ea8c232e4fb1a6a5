package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/internal/storage/index"
)

func TestSkipList_Insert(t *testing.T) {
	tests := []struct {
		name   string
		key    int64
		value  string
		verify func(*testing.T, *index.SkipList[string])
	}{
		{
			name:  "insert single element",
			key:   1,
			value: "value1",
			verify: func(t *testing.T, sl *index.SkipList[string]) {
				val, found := sl.Get(1)
				assert.True(t, found)
				assert.Equal(t, "value1", val)
			},
		},
		{
			name:  "insert multiple elements",
			key:   2,
			value: "value2",
			verify: func(t *testing.T, sl *index.SkipList[string]) {
				sl.Insert(3, "value3")
				sl.Insert(1, "value1")

				assert.Equal(t, 3, sl.Len())
				val, found := sl.Get(1)
				assert.True(t, found)
				assert.Equal(t, "value1", val)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl := index.New[string]()
			sl.Insert(tt.key, tt.value)
			tt.verify(t, sl)
		})
	}
}

func TestSkipList_Update(t *testing.T) {
	sl := index.New[string]()

	sl.Insert(1, "value1")
	val, found := sl.Get(1)
	require.True(t, found)
	assert.Equal(t, "value1", val)

	sl.Insert(1, "value2")
	val, found = sl.Get(1)
	require.True(t, found)
	assert.Equal(t, "value2", val)

	assert.Equal(t, 1, sl.Len())
}

func TestSkipList_Get(t *testing.T) {
	sl := index.New[string]()

	sl.Insert(10, "apple")
	sl.Insert(20, "banana")
	sl.Insert(30, "cherry")

	tests := []struct {
		name      string
		key       int64
		wantValue string
		wantFound bool
	}{
		{name: "get existing key", key: 20, wantValue: "banana", wantFound: true},
		{name: "get non-existing key", key: 99, wantValue: "", wantFound: false},
		{name: "get first key", key: 10, wantValue: "apple", wantFound: true},
		{name: "get last key", key: 30, wantValue: "cherry", wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, found := sl.Get(tt.key)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantValue, val)
		})
	}
}

func TestSkipList_Range(t *testing.T) {
	sl := index.New[string]()

	sl.Insert(30, "cherry")
	sl.Insert(10, "apple")
	sl.Insert(20, "banana")

	var keys []int64
	sl.Range(func(key int64, value string) bool {
		keys = append(keys, key)
		return true
	})

	assert.Equal(t, []int64{10, 20, 30}, keys)
}

func TestSkipList_RangeEarlyStop(t *testing.T) {
	sl := index.New[string]()
	sl.Insert(1, "a")
	sl.Insert(2, "b")
	sl.Insert(3, "c")

	var keys []int64
	sl.Range(func(key int64, value string) bool {
		keys = append(keys, key)
		return key < 2
	})

	assert.Equal(t, []int64{1, 2}, keys)
}

func TestSkipList_Empty(t *testing.T) {
	sl := index.New[int]()

	_, found := sl.Get(1)
	assert.False(t, found)
	assert.Equal(t, 0, sl.Len())

	called := false
	sl.Range(func(key int64, value int) bool {
		called = true
		return true
	})
	assert.False(t, called)
}

func BenchmarkSkipList_Insert(b *testing.B) {
	sl := index.New[int]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sl.Insert(int64(i), i)
	}
}

func BenchmarkSkipList_Get(b *testing.B) {
	sl := index.New[int]()
	for i := 0; i < 10000; i++ {
		sl.Insert(int64(i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sl.Get(int64(i % 10000))
	}
}
