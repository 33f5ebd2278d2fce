// Package dedup 在已计算好指纹的记录上查找完全重复与近似重复。
//
// 三个入口对应流水线的三个阶段：
//   - ExactGroups：同一身份键下内容哈希相同，或规范形式相同且两两视觉相似的文件
//   - NearPairs：同一身份键下内容与规范形式都不同、但视觉相似的文件对
//   - ClassifyPairs：全库两两比较，按元数据与视觉是否相似分类
package dedup

import (
	"sort"

	"github.com/corona10/goimagehash"

	"github.com/banyuechenjiang/cardsort/pkg/canonical"
	"github.com/banyuechenjiang/cardsort/pkg/fingerprint"
)

// Item 参与比较的一条记录，调用方保证内容哈希可用
type Item struct {
	Path       string
	Key        string
	Content    fingerprint.Hash256
	Perceptual *goimagehash.ImageHash
	Canonical  *canonical.Form
}

// Similarity 判断两个感知哈希是否视觉相似
type Similarity func(a, b *goimagehash.ImageHash) bool

// Group 一组重复文件，Paths 按字典序排列
type Group struct {
	Key   string
	Paths []string
}

// Pair 一对近似重复文件，A < B；Distance 为 -1 表示无法计算
type Pair struct {
	Key      string
	A, B     string
	Distance int
}

// PairKind 全库两两比较的结论
type PairKind int

const (
	MetaAndVisualSimilar PairKind = iota
	MetaSimilarOnly
	VisualSimilarOnly
)

func (k PairKind) String() string {
	switch k {
	case MetaAndVisualSimilar:
		return "元数据与视觉均相似"
	case MetaSimilarOnly:
		return "仅元数据相同"
	case VisualSimilarOnly:
		return "仅视觉相似"
	default:
		return "未知"
	}
}

// ClassifiedPair 全库两两比较的一条结果
type ClassifiedPair struct {
	A, B     string
	Kind     PairKind
	Distance int
}

// Distance 两个感知哈希的汉明距离，任一缺失时为 -1
func Distance(a, b *goimagehash.ImageHash) int {
	if a == nil || b == nil {
		return -1
	}
	d, err := a.Distance(b)
	if err != nil {
		return -1
	}
	return d
}

// byKey 按身份键分桶，桶内按路径排序
func byKey(items []Item) (map[string][]Item, []string) {
	buckets := make(map[string][]Item)
	for _, it := range items {
		buckets[it.Key] = append(buckets[it.Key], it)
	}
	keys := make([]string, 0, len(buckets))
	for k, b := range buckets {
		sort.Slice(b, func(i, j int) bool { return b[i].Path < b[j].Path })
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return buckets, keys
}

// visuallyConsistent 字节相同视为视觉一致，否则看感知哈希
func visuallyConsistent(a, b Item, similar Similarity) bool {
	return a.Content == b.Content || similar(a.Perceptual, b.Perceptual)
}

// ExactGroups 在每个身份键内找出重复组。内容哈希相同的集合直接成立；
// 规范形式相同的集合要求两两视觉一致才成立；相互重叠的集合合并。
func ExactGroups(items []Item, similar Similarity) []Group {
	buckets, keys := byKey(items)

	var groups []Group
	for _, key := range keys {
		bucket := buckets[key]
		if len(bucket) < 2 {
			continue
		}
		uf := newUnionFind(len(bucket))

		byContent := make(map[fingerprint.Hash256][]int)
		for i, it := range bucket {
			byContent[it.Content] = append(byContent[it.Content], i)
		}
		for _, set := range byContent {
			uf.unionAll(set)
		}

		for _, set := range canonicalSets(bucket) {
			if len(set) < 2 || !allPairs(bucket, set, similar) {
				continue
			}
			uf.unionAll(set)
		}

		for _, members := range uf.components() {
			if len(members) < 2 {
				continue
			}
			paths := make([]string, 0, len(members))
			for _, i := range members {
				paths = append(paths, bucket[i].Path)
			}
			sort.Strings(paths)
			groups = append(groups, Group{Key: key, Paths: paths})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key != groups[j].Key {
			return groups[i].Key < groups[j].Key
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})
	return groups
}

// canonicalSets 把规范形式相等的记录归为一组（nil 与 nil 相等）
func canonicalSets(bucket []Item) [][]int {
	byHash := make(map[uint64][][]int)
	for i, it := range bucket {
		h := it.Canonical.Key()
		placed := false
		for s, set := range byHash[h] {
			if canonical.Equal(bucket[set[0]].Canonical, it.Canonical) {
				byHash[h][s] = append(set, i)
				placed = true
				break
			}
		}
		if !placed {
			byHash[h] = append(byHash[h], []int{i})
		}
	}

	var sets [][]int
	for _, list := range byHash {
		sets = append(sets, list...)
	}
	return sets
}

func allPairs(bucket []Item, set []int, similar Similarity) bool {
	for i := 0; i < len(set); i++ {
		for j := i + 1; j < len(set); j++ {
			if !visuallyConsistent(bucket[set[i]], bucket[set[j]], similar) {
				return false
			}
		}
	}
	return true
}

// NearPairs 在每个身份键内找出内容不同、规范形式不同、不在同一重复组、但视觉相似的文件对
func NearPairs(items []Item, exact []Group, similar Similarity) []Pair {
	groupOf := make(map[string]int)
	for gi, g := range exact {
		for _, p := range g.Paths {
			groupOf[p] = gi
		}
	}
	sameGroup := func(a, b string) bool {
		ga, okA := groupOf[a]
		gb, okB := groupOf[b]
		return okA && okB && ga == gb
	}

	buckets, keys := byKey(items)

	var pairs []Pair
	for _, key := range keys {
		bucket := buckets[key]
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if a.Content == b.Content || canonical.Equal(a.Canonical, b.Canonical) {
					continue
				}
				if sameGroup(a.Path, b.Path) || !similar(a.Perceptual, b.Perceptual) {
					continue
				}
				pairs = append(pairs, Pair{Key: key, A: a.Path, B: b.Path, Distance: Distance(a.Perceptual, b.Perceptual)})
			}
		}
	}
	return pairs
}

// ClassifyPairs 对全部记录两两比较，内容相同的对跳过，元数据与视觉都不相似的对不输出
func ClassifyPairs(items []Item, similar Similarity) []ClassifiedPair {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var out []ClassifiedPair
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.Content == b.Content {
				continue
			}
			meta := canonical.Equal(a.Canonical, b.Canonical)
			visual := similar(a.Perceptual, b.Perceptual)

			var kind PairKind
			switch {
			case meta && visual:
				kind = MetaAndVisualSimilar
			case meta:
				kind = MetaSimilarOnly
			case visual:
				kind = VisualSimilarOnly
			default:
				continue
			}
			out = append(out, ClassifiedPair{A: a.Path, B: b.Path, Kind: kind, Distance: Distance(a.Perceptual, b.Perceptual)})
		}
	}
	return out
}
