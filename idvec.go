package ecsim

import "sort"

// fnv64Offset and fnv64Prime are the standard FNV-1a 64-bit constants; Vec's
// hash folds a sorted id stream through them (§4.2: "FNV-style word hashing").
const (
	fnv64Offset = 1469598103934665603
	fnv64Prime  = 1099511628211
)

// Vec is an immutable, duplicate-free, id-sorted list of component ids with
// a cached hash and sparse membership test. Set-algebra results are
// memoized by the identity of the other operand, so repeated archetype
// transitions between the same two vecs are amortized O(1) (§4.2).
type Vec struct {
	ids    []ComponentID
	hash   uint64
	member map[ComponentID]struct{}

	sumCache      map[*Vec]*Vec
	diffCache     map[*Vec]*Vec
	interCache    map[*Vec]*Vec
	xorHashCache  map[*Vec]uint64
	supersetCache map[*Vec]bool
}

var emptyVec = buildVec(nil)

// EmptyVec returns the canonical empty vec (the archetype graph's root).
func EmptyVec() *Vec { return emptyVec }

func vecHash(ids []ComponentID) uint64 {
	h := uint64(fnv64Offset)
	for _, id := range ids {
		h = (h ^ uint64(id)) * fnv64Prime
	}
	return h
}

func buildVec(ids []ComponentID) *Vec {
	return &Vec{ids: ids, hash: vecHash(ids), member: memberSet(ids)}
}

func memberSet(ids []ComponentID) map[ComponentID]struct{} {
	m := make(map[ComponentID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// MakeVec dedupes and sorts ids by value and returns the resulting Vec.
func MakeVec(ids []ComponentID) *Vec {
	if len(ids) == 0 {
		return emptyVec
	}
	cp := append([]ComponentID(nil), ids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	out := cp[:1]
	for _, id := range cp[1:] {
		if out[len(out)-1] != id {
			out = append(out, id)
		}
	}
	return buildVec(out)
}

// Has reports whether id is a member of v.
func (v *Vec) Has(id ComponentID) bool {
	_, ok := v.member[id]
	return ok
}

// Len returns the number of ids in v.
func (v *Vec) Len() int { return len(v.ids) }

// IDs returns the sorted id slice backing v. Callers must not mutate it.
func (v *Vec) IDs() []ComponentID { return v.ids }

// Hash returns v's cached FNV-style fold.
func (v *Vec) Hash() uint64 { return v.hash }

// mergeSorted walks two sorted, deduped id slices once (O(|a|+|b|)),
// calling onlyA, onlyB, or both (each may be nil) for ids present only in
// a, only in b, and in both.
func mergeSorted(a, b []ComponentID, onlyA, onlyB, both func(ComponentID)) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			if onlyA != nil {
				onlyA(a[i])
			}
			i++
		case a[i] > b[j]:
			if onlyB != nil {
				onlyB(b[j])
			}
			j++
		default:
			if both != nil {
				both(a[i])
			}
			i++
			j++
		}
	}
	for ; i < len(a); i++ {
		if onlyA != nil {
			onlyA(a[i])
		}
	}
	for ; j < len(b); j++ {
		if onlyB != nil {
			onlyB(b[j])
		}
	}
}

// Sum returns the sorted union of v and other, memoized by other's identity.
func (v *Vec) Sum(other *Vec) *Vec {
	if other == nil || other.Len() == 0 {
		return v
	}
	if v.Len() == 0 {
		return other
	}
	if v.sumCache == nil {
		v.sumCache = make(map[*Vec]*Vec, 4)
	}
	if cached, ok := v.sumCache[other]; ok {
		return cached
	}
	out := make([]ComponentID, 0, v.Len()+other.Len())
	add := func(id ComponentID) { out = append(out, id) }
	mergeSorted(v.ids, other.ids, add, add, add)
	result := buildVec(out)
	v.sumCache[other] = result
	return result
}

// Difference returns v's ids that are absent from other, memoized.
func (v *Vec) Difference(other *Vec) *Vec {
	if other == nil || other.Len() == 0 {
		return v
	}
	if v.diffCache == nil {
		v.diffCache = make(map[*Vec]*Vec, 4)
	}
	if cached, ok := v.diffCache[other]; ok {
		return cached
	}
	out := make([]ComponentID, 0, v.Len())
	mergeSorted(v.ids, other.ids, func(id ComponentID) { out = append(out, id) }, nil, nil)
	result := buildVec(out)
	v.diffCache[other] = result
	return result
}

// Intersection returns the ids common to v and other, memoized.
func (v *Vec) Intersection(other *Vec) *Vec {
	if other == nil || v.Len() == 0 || other.Len() == 0 {
		return emptyVec
	}
	if v.interCache == nil {
		v.interCache = make(map[*Vec]*Vec, 4)
	}
	if cached, ok := v.interCache[other]; ok {
		return cached
	}
	out := make([]ComponentID, 0, min(v.Len(), other.Len()))
	mergeSorted(v.ids, other.ids, nil, nil, func(id ComponentID) { out = append(out, id) })
	result := buildVec(out)
	v.interCache[other] = result
	return result
}

// XorHash returns the XOR of v's and other's cached hashes, memoized by
// other's identity.
func (v *Vec) XorHash(other *Vec) uint64 {
	if v.xorHashCache == nil {
		v.xorHashCache = make(map[*Vec]uint64, 4)
	}
	if cached, ok := v.xorHashCache[other]; ok {
		return cached
	}
	h := v.Hash() ^ other.Hash()
	v.xorHashCache[other] = h
	return h
}

// IsSupersetOf reports whether v contains every id in other, memoized.
func (v *Vec) IsSupersetOf(other *Vec) bool {
	if other == nil || other.Len() == 0 {
		return true
	}
	if other.Len() > v.Len() {
		return false
	}
	if v.supersetCache == nil {
		v.supersetCache = make(map[*Vec]bool, 4)
	}
	if cached, ok := v.supersetCache[other]; ok {
		return cached
	}
	ok := true
	for _, id := range other.ids {
		if !v.Has(id) {
			ok = false
			break
		}
	}
	v.supersetCache[other] = ok
	return ok
}

// IsProperSubsetOf reports whether v is a strict subset of other.
func (v *Vec) IsProperSubsetOf(other *Vec) bool {
	return v.Len() < other.Len() && other.IsSupersetOf(v)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
