package domain

type VotingSystem string

const (
	SystemFibonacci     VotingSystem = "fibonacci"
	SystemModifiedFib   VotingSystem = "modified-fibonacci"
	SystemTShirt        VotingSystem = "tshirt"
	SystemPowersOfTwo   VotingSystem = "powers-of-2"
	SystemLinear        VotingSystem = "linear"
	DefaultVotingSystem              = SystemFibonacci
)

// Sentinel tokens present in every deck.
const (
	TokenUnknown = "?"
	TokenBreak   = "☕"
)

var decks = map[VotingSystem][]string{
	SystemFibonacci:   {"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", TokenUnknown, TokenBreak},
	SystemModifiedFib: {"0", "0.5", "1", "2", "3", "5", "8", "13", "20", "40", "100", TokenUnknown, TokenBreak},
	SystemTShirt:      {"XS", "S", "M", "L", "XL", "XXL", TokenUnknown, TokenBreak},
	SystemPowersOfTwo: {"1", "2", "4", "8", "16", "32", "64", TokenUnknown, TokenBreak},
	SystemLinear:      {"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", TokenUnknown, TokenBreak},
}

// Known reports whether s is a member of the closed enumeration.
func (s VotingSystem) Known() bool {
	_, ok := decks[s]
	return ok
}

// Deck returns the ordered token list for the system, nil for unknown systems.
func (s VotingSystem) Deck() []string {
	return decks[s]
}

// Allows reports whether vote is a permissible token under this system.
func (s VotingSystem) Allows(vote string) bool {
	for _, v := range decks[s] {
		if v == vote {
			return true
		}
	}
	return false
}
