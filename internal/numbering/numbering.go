// Package numbering formats and parses the human-readable operation and
// assignment numbers ("2024-007", "2024-007-012").
package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// OperationNumber returns "YYYY-NNN". The suffix is zero padded to three
// digits and simply grows past 999.
func OperationNumber(year, n int) string {
	return fmt.Sprintf("%d-%03d", year, n)
}

// AssignmentNumber returns "<operation number>-NNN".
func AssignmentNumber(operationNumber string, n int) string {
	return fmt.Sprintf("%s-%03d", operationNumber, n)
}

func OperationScope(year int) string {
	return fmt.Sprintf("operation:%d", year)
}

func AssignmentScope(operationID string) string {
	return "assignment:" + operationID
}

// OperationPrefix is the LIKE prefix shared by every operation number of a year.
func OperationPrefix(year int) string {
	return fmt.Sprintf("%d-", year)
}

// Suffix parses the counter after the final '-'.
func Suffix(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("number %q has no numeric suffix", number)
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("number %q has no numeric suffix: %w", number, err)
	}
	return n, nil
}

// MaxSuffix returns the numerically largest suffix, ignoring values that do not
// parse. It returns 0 for an empty input.
func MaxSuffix(numbers []string) int {
	highest := 0
	for _, number := range numbers {
		n, err := Suffix(number)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}
