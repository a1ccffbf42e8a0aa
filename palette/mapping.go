package palette

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
)

// Mapping assigns new colors to palette indices.
type Mapping map[int]color.NRGBA

// Indices returns the mapped indices in ascending order.
func (m Mapping) Indices() []int {
	idx := make([]int, 0, len(m))
	for i := range m {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// ParseMapping parses edits like "3=#ff0000" or "12=0,0,255,128".
// Alpha is accepted, and ends up as the default opacity of that entry.
func ParseMapping(args []string) (Mapping, error) {
	m := make(Mapping, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("edit '%s' is not in the form index=color", arg)
		}
		i, err := ParseIndex(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("edit '%s': %w", arg, err)
		}
		c, err := ParseColor(strings.TrimSpace(v), true)
		if err != nil {
			return nil, fmt.Errorf("edit '%s': %w", arg, err)
		}
		m[i] = c
	}
	return m, nil
}

// ParseIndex parses a single palette index, 0-255.
func ParseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a palette index", s)
	}
	if i < 0 || i >= MaxColors {
		return 0, &RangeError{What: "palette index", Value: i, Min: 0, Max: MaxColors - 1}
	}
	return i, nil
}

// ParseIndices parses palette indices separated by commas or spaces.
// Duplicates are collapsed and the result is sorted.
func ParseIndices(args []string) ([]int, error) {
	set := make(map[int]struct{})
	for _, arg := range args {
		for _, f := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			i, err := ParseIndex(f)
			if err != nil {
				return nil, err
			}
			set[i] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}
