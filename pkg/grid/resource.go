package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// resourceLabelPrefix is the display prefix of a resource label.
const resourceLabelPrefix = "Resource "

// ResourceLabel returns the display label of a resource index.
func ResourceLabel(index int) string {
	return resourceLabelPrefix + strconv.Itoa(index+1)
}

// ParseResource converts a resource reference to its index. It accepts the
// label form ("Resource 2" -> 1) and a bare index ("1" -> 1).
func ParseResource(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(trimmed, resourceLabelPrefix); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid resource label %q", s)
		}
		return n - 1, nil
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid resource reference %q", s)
	}
	return n, nil
}
