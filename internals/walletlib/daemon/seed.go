package daemon

import (
	"crypto/rand"
	"strings"

	"github.com/Oudwins/walletgate/internals/assert"
)

const seedWords = 12

var wordIndex = func() map[string]int {
	index := make(map[string]int, len(wordlist))
	for i, w := range wordlist {
		index[w] = i
	}
	assert.Assert(len(index) == len(wordlist), "seed wordlist has duplicate words")
	return index
}()

// newSeed draws eleven random words and appends a checksum word.
func newSeed() (string, error) {
	raw := make([]byte, seedWords-1)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	words := make([]string, 0, seedWords)
	sum := 0
	for _, b := range raw {
		words = append(words, wordlist[b])
		sum += int(b)
	}
	words = append(words, wordlist[sum%len(wordlist)])
	return strings.Join(words, " "), nil
}

func normalizeSeed(seed string) string {
	return strings.Join(strings.Fields(strings.ToLower(seed)), " ")
}

func validSeed(seed string) bool {
	words := strings.Fields(seed)
	if len(words) != seedWords {
		return false
	}
	sum := 0
	for i, w := range words {
		idx, ok := wordIndex[w]
		if !ok {
			return false
		}
		if i < seedWords-1 {
			sum += idx
			continue
		}
		if idx != sum%len(wordlist) {
			return false
		}
	}
	return true
}
