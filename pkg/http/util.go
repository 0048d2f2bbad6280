package http

import (
	xutil "ReserveDesk/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// QuarterLabel renders a zero-based quarter index as "Y2Q3".
func QuarterLabel(index int) string { return xutil.QuarterLabel(index) }
