package ecs

import (
	"fmt"
	"strconv"
)

// Key identifies a scalar-valued column: a primitive bar (Kind="Close", no
// Horizon/Source) or a derived indicator (Kind="SMA", Horizon=3,
// Source="Close"). Keys are plain comparable values, not Go types, so that
// the indicator solver can reason over a registry of (column key ->
// calculator) without needing value-generic type parameters (Go has none) —
// see SPEC_FULL.md §9 "tagged-variant component kinds".
//
// Compound sources nest by embedding the nested key's String() form, e.g.
// RSI<14,Close> requires EMA<14,UpDown<Difference<Close>>>.
type Key struct {
	Kind    string
	Horizon int
	Source  string
}

// Bar builds the key for a primitive bar column (Open, Close, High, Low,
// Volume).
func Bar(role string) Key { return Key{Kind: role} }

func (k Key) String() string {
	switch {
	case k.Horizon != 0 && k.Source != "":
		return fmt.Sprintf("%s<%d,%s>", k.Kind, k.Horizon, k.Source)
	case k.Source != "":
		return fmt.Sprintf("%s<%s>", k.Kind, k.Source)
	default:
		return k.Kind
	}
}

// IsZero reports whether k is the unset key.
func (k Key) IsZero() bool { return k.Kind == "" }

// ParseKey reconstructs the Key that produced s via String(). It is the
// inverse used to recover a nested source key's structure — Key.Source
// stores a nested key's canonical string form rather than a recursive
// struct field, since Go structs cannot contain themselves by value.
func ParseKey(s string) Key {
	i := indexByte(s, '<')
	if i < 0 {
		return Key{Kind: s}
	}
	kind := s[:i]
	inner := s[i+1 : len(s)-1]

	depth := 0
	commaIdx := -1
	for j := 0; j < len(inner); j++ {
		switch inner[j] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 && commaIdx == -1 {
				commaIdx = j
			}
		}
	}
	if commaIdx == -1 {
		return Key{Kind: kind, Source: inner}
	}
	horizon, _ := strconv.Atoi(inner[:commaIdx])
	return Key{Kind: kind, Horizon: horizon, Source: inner[commaIdx+1:]}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
