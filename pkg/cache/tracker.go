package cache

import (
	"container/list"
	"sort"
	"time"
)

// PolicyType 淘汰策略类型
type PolicyType string

const (
	PolicyRecency   PolicyType = "recency"   // 最近最少使用 (LRU)
	PolicyFrequency PolicyType = "frequency" // 最不经常使用 (LFU)
	PolicyInsertion PolicyType = "insertion" // 先进先出 (FIFO)
)

// valid 判断策略类型是否受支持。
func (p PolicyType) valid() bool {
	switch p {
	case PolicyRecency, PolicyFrequency, PolicyInsertion:
		return true
	}
	return false
}

// evictionTracker 维护选取淘汰受害者所需的排序结构。
// 三种策略共用一个结构体，按 policy 标签在单个 switch 中分派，
// 保证淘汰逻辑集中且可穷举审计：
//   - recency:   链表，最近访问的键在尾部，读写都会把键移到尾部
//   - insertion: 链表，仅按插入顺序，读不改变顺序
//   - frequency: 键到访问次数的映射，平局时淘汰 InsertedAt 最早的键
//
// 不变式：tracker 的键集合与条目表的键集合完全一致。所有方法都必须
// 在 MemoryCache 的互斥锁内调用，tracker 自身不加锁。
type evictionTracker struct {
	policy PolicyType
	order  *list.List               // recency / insertion 的顺序链表
	index  map[string]*list.Element // 键到链表节点的索引
	counts map[string]int64         // frequency 的访问计数
}

// newEvictionTracker 创建指定策略的空 tracker。
func newEvictionTracker(policy PolicyType) *evictionTracker {
	t := &evictionTracker{policy: policy}
	switch policy {
	case PolicyRecency, PolicyInsertion:
		t.order = list.New()
		t.index = make(map[string]*list.Element)
	case PolicyFrequency:
		t.counts = make(map[string]int64)
	}
	return t
}

// add 登记一个新插入的键。
func (t *evictionTracker) add(key string) {
	switch t.policy {
	case PolicyRecency, PolicyInsertion:
		t.index[key] = t.order.PushBack(key)
	case PolicyFrequency:
		t.counts[key] = 0
	}
}

// touch 登记一次访问。插入序策略忽略访问。
func (t *evictionTracker) touch(key string) {
	switch t.policy {
	case PolicyRecency:
		if elem, ok := t.index[key]; ok {
			t.order.MoveToBack(elem)
		}
	case PolicyFrequency:
		t.counts[key]++
	case PolicyInsertion:
		// FIFO 不关心访问
	}
}

// remove 注销一个键。
func (t *evictionTracker) remove(key string) {
	switch t.policy {
	case PolicyRecency, PolicyInsertion:
		if elem, ok := t.index[key]; ok {
			t.order.Remove(elem)
			delete(t.index, key)
		}
	case PolicyFrequency:
		delete(t.counts, key)
	}
}

// victim 选出下一个淘汰受害者。entries 是当前条目表，frequency
// 策略用它做 InsertedAt 平局判定。
func (t *evictionTracker) victim(entries map[string]*CacheEntry) (string, bool) {
	switch t.policy {
	case PolicyRecency, PolicyInsertion:
		if front := t.order.Front(); front != nil {
			return front.Value.(string), true
		}
		return "", false
	case PolicyFrequency:
		var victimKey string
		var minCount int64 = -1
		var oldest time.Time
		for key, count := range t.counts {
			entry, ok := entries[key]
			if !ok {
				continue
			}
			if minCount == -1 || count < minCount ||
				(count == minCount && entry.InsertedAt.Before(oldest)) {
				minCount = count
				victimKey = key
				oldest = entry.InsertedAt
			}
		}
		return victimKey, victimKey != ""
	}
	return "", false
}

// rebuildTracker 在策略切换时根据现有条目的元数据重建排序结构：
// recency 按当前 AccessedAt 排序，insertion 按 InsertedAt 排序，
// frequency 从 AccessCount 恢复计数。
func rebuildTracker(policy PolicyType, entries map[string]*CacheEntry) *evictionTracker {
	t := newEvictionTracker(policy)

	switch policy {
	case PolicyRecency, PolicyInsertion:
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := entries[keys[i]], entries[keys[j]]
			if policy == PolicyRecency {
				return a.AccessedAt.Before(b.AccessedAt)
			}
			return a.InsertedAt.Before(b.InsertedAt)
		})
		for _, key := range keys {
			t.index[key] = t.order.PushBack(key)
		}
	case PolicyFrequency:
		for key, entry := range entries {
			t.counts[key] = entry.AccessCount
		}
	}

	return t
}
