package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func trackerEntries(keys ...string) map[string]*CacheEntry {
	now := time.Now()
	entries := make(map[string]*CacheEntry, len(keys))
	for i, key := range keys {
		entries[key] = &CacheEntry{
			Key:        key,
			InsertedAt: now.Add(time.Duration(i) * time.Millisecond),
			AccessedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
	}
	return entries
}

// 测试recency顺序：touch把键移到队尾，受害者是最久未访问的
func TestEvictionTracker_Recency(t *testing.T) {
	tr := newEvictionTracker(PolicyRecency)
	entries := trackerEntries("a", "b", "c")

	tr.add("a")
	tr.add("b")
	tr.add("c")

	victim, ok := tr.victim(entries)
	assert.True(t, ok)
	assert.Equal(t, "a", victim)

	tr.touch("a")
	victim, _ = tr.victim(entries)
	assert.Equal(t, "b", victim)

	tr.remove("b")
	victim, _ = tr.victim(entries)
	assert.Equal(t, "c", victim)
}

// 测试insertion顺序：touch不改变顺序
func TestEvictionTracker_Insertion(t *testing.T) {
	tr := newEvictionTracker(PolicyInsertion)
	entries := trackerEntries("a", "b", "c")

	tr.add("a")
	tr.add("b")
	tr.add("c")

	tr.touch("a")
	tr.touch("a")

	victim, ok := tr.victim(entries)
	assert.True(t, ok)
	assert.Equal(t, "a", victim, "reads do not reorder FIFO")
}

// 测试frequency：最小计数被淘汰，平局时取InsertedAt最早的
func TestEvictionTracker_Frequency(t *testing.T) {
	tr := newEvictionTracker(PolicyFrequency)
	entries := trackerEntries("a", "b", "c")

	tr.add("a")
	tr.add("b")
	tr.add("c")

	tr.touch("a")
	tr.touch("a")
	tr.touch("c")

	victim, ok := tr.victim(entries)
	assert.True(t, ok)
	assert.Equal(t, "b", victim)

	// b 和 c 同为 1 次时，插入更早的 b 输掉平局
	tr.touch("b")
	tr.touch("a")
	victim, _ = tr.victim(entries)
	assert.Equal(t, "b", victim)
}

// 测试空tracker没有受害者
func TestEvictionTracker_Empty(t *testing.T) {
	for _, policy := range []PolicyType{PolicyRecency, PolicyFrequency, PolicyInsertion} {
		tr := newEvictionTracker(policy)
		_, ok := tr.victim(map[string]*CacheEntry{})
		assert.False(t, ok, "policy %s", policy)
	}
}

// 测试策略切换重建：recency按AccessedAt，insertion按InsertedAt，
// frequency从AccessCount恢复
func TestRebuildTracker(t *testing.T) {
	now := time.Now()
	entries := map[string]*CacheEntry{
		"a": {Key: "a", InsertedAt: now, AccessedAt: now.Add(30 * time.Millisecond), AccessCount: 3},
		"b": {Key: "b", InsertedAt: now.Add(10 * time.Millisecond), AccessedAt: now.Add(5 * time.Millisecond), AccessCount: 0},
		"c": {Key: "c", InsertedAt: now.Add(20 * time.Millisecond), AccessedAt: now.Add(15 * time.Millisecond), AccessCount: 1},
	}

	tr := rebuildTracker(PolicyRecency, entries)
	victim, _ := tr.victim(entries)
	assert.Equal(t, "b", victim, "least recently accessed")

	tr = rebuildTracker(PolicyInsertion, entries)
	victim, _ = tr.victim(entries)
	assert.Equal(t, "a", victim, "earliest inserted")

	tr = rebuildTracker(PolicyFrequency, entries)
	victim, _ = tr.victim(entries)
	assert.Equal(t, "b", victim, "lowest restored access count")
}

// 测试PolicyType校验
func TestPolicyType_Valid(t *testing.T) {
	assert.True(t, PolicyRecency.valid())
	assert.True(t, PolicyFrequency.valid())
	assert.True(t, PolicyInsertion.valid())
	assert.False(t, PolicyType("random").valid())
	assert.False(t, PolicyType("").valid())
}
