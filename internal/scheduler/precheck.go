package scheduler

import (
	"fmt"
	"math"
)

// Capacity compares aggregate demand with the number of grid cells.
type Capacity struct {
	TotalRequired  int `json:"totalRequired" yaml:"totalRequired"`
	TotalAvailable int `json:"totalAvailable" yaml:"totalAvailable"`
}

// Exceeded reports whether demand cannot fit even ignoring conflicts.
func (c Capacity) Exceeded() bool {
	return c.TotalRequired > c.TotalAvailable
}

// Message renders the capacity shortfall for diagnostics.
func (c Capacity) Message() string {
	return fmt.Sprintf("%d required slots exceed %d available slots", c.TotalRequired, c.TotalAvailable)
}

// PreCheck computes the capacity bound. Passing it does not guarantee placement.
// Both totals saturate at math.MaxInt instead of wrapping.
func PreCheck(req Request) Capacity {
	required := 0
	for _, task := range req.Tasks {
		required = saturatingAdd(required, task.RequiredOccurrences)
	}
	available := saturatingMul(saturatingMul(len(req.Sites), len(req.Days)), len(req.TimeSlots))
	return Capacity{
		TotalRequired:  required,
		TotalAvailable: available,
	}
}

// saturatingAdd adds two non-negative ints, clamping at math.MaxInt.
func saturatingAdd(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// saturatingMul multiplies two non-negative ints, clamping at math.MaxInt.
func saturatingMul(a, b int) int {
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}
