package ecs

import "math"

// Indicator is the capability set spec §4.1 requires of any component
// participating in aggregate systems such as moving averages: zero,
// addition, scaling, and square root. Every scalar column value is a
// float64 (see values.go), so the constraint is trivially satisfied. The
// calculators in internal/indicators work on float64 values directly and
// do not call these generic helpers.
type Indicator interface {
	~float64
}

// Zero returns the identity element for addition.
func Zero[T Indicator]() T { return T(0) }

// Add returns a+b.
func Add[T Indicator](a, b T) T { return a + b }

// Scale returns a scaled by f.
func Scale[T Indicator](a T, f float64) T { return T(float64(a) * f) }

// Sqrt returns the square root of a.
func Sqrt[T Indicator](a T) T { return T(math.Sqrt(float64(a))) }
