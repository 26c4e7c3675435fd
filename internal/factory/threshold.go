package factory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dkoosis/sweep/internal/job"
)

// ErrInvalidThreshold is wrapped by every threshold parsing failure.
var ErrInvalidThreshold = errors.New("invalid threshold")

// maxThresholdValues bounds the size of one expanded range.
const maxThresholdValues = 1 << 20

// ParseThresholds expands threshold specs into a sorted list of distinct
// values. A spec is a single value or "min,max[,step]" with both ends
// included; step defaults to 1. Digits may be grouped with underscores.
// No specs yields the sentinel alone.
func ParseThresholds(specs []string) ([]int, error) {
	if len(specs) == 0 {
		return []int{job.NoThreshold}, nil
	}

	set := make(map[int]struct{})
	for _, spec := range specs {
		values, err := parseThreshold(spec)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			set[v] = struct{}{}
		}
	}

	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func parseThreshold(spec string) ([]int, error) {
	fields := strings.Split(strings.TrimSpace(spec), ",")
	if len(fields) > 3 {
		return nil, fmt.Errorf("%w %q: expected value or min,max[,step]", ErrInvalidThreshold, spec)
	}

	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(f), "_", ""))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %q is not an integer", ErrInvalidThreshold, spec, f)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w %q: values must be positive", ErrInvalidThreshold, spec)
		}
		nums[i] = n
	}

	if len(nums) == 1 {
		return nums, nil
	}

	lo, hi, step := nums[0], nums[1], 1
	if len(nums) == 3 {
		step = nums[2]
	}
	if hi < lo {
		return nil, fmt.Errorf("%w %q: max %d is below min %d", ErrInvalidThreshold, spec, hi, lo)
	}
	if (hi-lo)/step+1 > maxThresholdValues {
		return nil, fmt.Errorf("%w %q: range expands to more than %d values", ErrInvalidThreshold, spec, maxThresholdValues)
	}

	// lo+i*step stays <= hi for every i < n, so ranges ending at
	// math.MaxInt do not wrap.
	n := (hi-lo)/step + 1
	values := make([]int, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, lo+i*step)
	}
	return values, nil
}
