package document

// PreviewLength is the number of characters shown in a listing preview
const PreviewLength = 50

// Preview returns the first n characters of text, marking a cut with "..."
func Preview(text string, n int) string {
	count := 0
	for i := range text {
		if count == n {
			return text[:i] + "..."
		}
		count++
	}
	return text
}
