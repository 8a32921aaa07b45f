package scramble

// GeneratePermutation shuffles [0, tileCount) with a reverse Fisher-Yates walk
// driven by Mulberry32. perm[d] is the original slot of the tile stored at
// scrambled slot d. The modulo reduction is biased for ranges that are not a
// power of two; the scrambling side uses the same reduction, so it stays.
func GeneratePermutation(tileCount int, seed int32) []int {
	if tileCount <= 0 {
		return []int{}
	}
	perm := make([]int, tileCount)
	for i := range perm {
		perm[i] = i
	}
	shuffle(perm, NewMulberry32(seed))
	return perm
}

func shuffle(vals []int, rng *Mulberry32) {
	for i := len(vals) - 1; i > 0; i-- {
		j := int(rng.Next() % uint32(i+1))
		vals[i], vals[j] = vals[j], vals[i]
	}
}

// InvertPermutation returns inv with inv[perm[i]] == i. perm is not modified.
func InvertPermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, v := range perm {
		inv[v] = i
	}
	return inv
}
