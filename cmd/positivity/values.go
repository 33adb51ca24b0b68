package main

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultValues are checked when no values are given.
var defaultValues = []string{"null", "-5", "0", "1", "3", "2147483647", "-2147483648"}

// parseValue reads an optional int: "null" or "nil" is absent.
func parseValue(s string) (*int32, error) {
	switch strings.ToLower(s) {
	case "null", "nil":
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: want a 32-bit integer or null", s)
	}
	v := int32(n)
	return &v, nil
}

func parseValues(args []string) ([]*int32, error) {
	if len(args) == 0 {
		args = defaultValues
	}
	out := make([]*int32, len(args))
	for i, a := range args {
		v, err := parseValue(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatValue(v *int32) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatInt(int64(*v), 10)
}
