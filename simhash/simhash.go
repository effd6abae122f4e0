// Package simhash fingerprints page text so near-identical corpus cases
// can be told apart from genuinely different pages.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash over tokens using FNV-64a.
func Fingerprint(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Text fingerprints the lower-cased words of s as word pairs. Texts of a
// single word fall back to the word itself.
func Text(s string) uint64 {
	words := strings.Fields(strings.ToLower(s))
	if sh := Shingles(words, 2); len(sh) > 0 {
		return Fingerprint(sh)
	}
	return Fingerprint(words)
}

// Shingles joins every run of n consecutive tokens. Nil when there are
// fewer than n tokens.
func Shingles(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are at most threshold bits apart.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
