package dice

import (
	"errors"
	"strconv"
	"strings"
)

// Notation is a parsed dice expression of the form "NdS", "NdS+M" or
// "NdS-M".
type Notation struct {
	Count    int
	Sides    int
	Modifier int
}

// DefaultNotation is what unparseable expressions degrade to.
var DefaultNotation = Notation{Count: 1, Sides: 20}

func (n Notation) String() string {
	s := strconv.Itoa(n.Count) + "d" + strconv.Itoa(n.Sides)
	if n.Modifier > 0 {
		s += "+" + strconv.Itoa(n.Modifier)
	} else if n.Modifier < 0 {
		s += strconv.Itoa(n.Modifier)
	}
	return s
}

// ParseNotation parses "NdS[+M|-M]". A missing N means 1.
func ParseNotation(expr string) (Notation, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Notation{}, errors.New("empty dice notation")
	}

	modifier := 0
	dicePart := s
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		m, err := strconv.Atoi(s[i:])
		if err != nil {
			return Notation{}, errors.New("invalid dice modifier")
		}
		modifier = m
		dicePart = s[:i]
	}

	countPart, sidesPart, found := strings.Cut(dicePart, "d")
	if !found {
		return Notation{}, errors.New("invalid dice notation")
	}

	count := 1
	if countPart != "" {
		c, err := strconv.Atoi(countPart)
		if err != nil || c < 1 {
			return Notation{}, errors.New("invalid dice count")
		}
		count = c
	}

	sides, err := strconv.Atoi(sidesPart)
	if err != nil || sides < 1 {
		return Notation{}, errors.New("invalid dice sides")
	}

	return Notation{Count: count, Sides: sides, Modifier: modifier}, nil
}

// ParseNotationOrDefault parses expr, degrading to 1d20 when it does
// not parse.
func ParseNotationOrDefault(expr string) Notation {
	n, err := ParseNotation(expr)
	if err != nil {
		return DefaultNotation
	}
	return n
}

// RollNotation rolls a dice expression. Unparseable expressions
// degrade to 1d20.
func RollNotation(r Roller, expr string) (*RollResult, error) {
	n := ParseNotationOrDefault(expr)
	return r.Roll(n.Count, n.Sides, n.Modifier)
}

// AttackResult is the outcome of a d20 attack roll against an AC.
type AttackResult struct {
	Roll     int  // the natural die
	Total    int  // natural die plus attack bonus
	Hit      bool
	Critical bool
}

// RollAttack rolls 1d20+bonus against targetAC. A natural 20 hits and
// crits regardless of AC; a natural 1 always misses.
func RollAttack(r Roller, attackBonus, targetAC int) (*AttackResult, error) {
	roll, err := r.Roll(1, 20, attackBonus)
	if err != nil {
		return nil, err
	}

	natural := roll.Rolls[0]
	result := &AttackResult{
		Roll:  natural,
		Total: roll.Total,
	}

	switch {
	case natural == 20:
		result.Hit = true
		result.Critical = true
	case natural == 1:
		result.Hit = false
	default:
		result.Hit = roll.Total >= targetAC
	}

	return result, nil
}

// RollDamage rolls a damage expression. A critical hit doubles the
// number of dice but applies the modifier once. Never negative.
func RollDamage(r Roller, expr string, critical bool) (int, error) {
	n := ParseNotationOrDefault(expr)

	count := n.Count
	if critical {
		count *= 2
	}

	roll, err := r.Roll(count, n.Sides, n.Modifier)
	if err != nil {
		return 0, err
	}

	if roll.Total < 0 {
		return 0, nil
	}
	return roll.Total, nil
}
