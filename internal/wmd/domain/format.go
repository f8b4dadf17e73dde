package domain

import "strconv"

func formatUint(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}
