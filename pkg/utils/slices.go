package utils

// RemoveDuplicates returns items without repeats, keeping first occurrences
// in order.
func RemoveDuplicates[T comparable](items []T) []T {
	uniqueItems := make([]T, 0, len(items))
	seenItems := make(map[T]bool, len(items))
	for _, item := range items {
		if seenItems[item] {
			continue
		}
		uniqueItems = append(uniqueItems, item)
		seenItems[item] = true
	}
	return uniqueItems
}
