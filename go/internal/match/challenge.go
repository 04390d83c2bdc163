package match

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// DefaultChallengeLength is the number of letters in a duel's challenge.
	DefaultChallengeLength = 30

	challengeAlphabet = "abcdefghijklmnopqrstuvwxyz"
)

// ChallengeGenerator produces the shared text both players type.
type ChallengeGenerator func() (string, error)

// RandomLetters returns a generator of n random lowercase letters.
func RandomLetters(n int) ChallengeGenerator {
	if n <= 0 {
		n = DefaultChallengeLength
	}
	return func() (string, error) {
		letters, err := gonanoid.Generate(challengeAlphabet, n)
		if err != nil {
			return "", fmt.Errorf("failed to generate challenge: %w", err)
		}
		return letters, nil
	}
}

// FixedChallenge always returns text.
func FixedChallenge(text string) ChallengeGenerator {
	return func() (string, error) { return text, nil }
}
