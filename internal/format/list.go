package format

import "strings"

const defaultJoiner = ", "

// formatList joins items as "a", "a and b" or "a, b and c". There is no
// serial comma before the final "and".
func formatList(value any, opts Options) string {
	items, ok := value.([]any)
	if !ok {
		if strs, isStrs := value.([]string); isStrs {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return String(value)
		}
	}

	joiner := opts["joiner"]
	if joiner == "" {
		joiner = defaultJoiner
	}

	switch len(items) {
	case 0:
		return ""
	case 1:
		return String(items[0])
	case 2:
		return String(items[0]) + " and " + String(items[1])
	}

	head := make([]string, len(items)-1)
	for i, item := range items[:len(items)-1] {
		head[i] = String(item)
	}
	return strings.Join(head, joiner) + " and " + String(items[len(items)-1])
}
