package core

import "unicode/utf8"

// SegmentLength is the billing unit used for message segment counts.
const SegmentLength = 153

// SegmentsCount returns ceil(characters/153). An empty body counts as zero
// segments.
func SegmentsCount(body string) int {
	length := utf8.RuneCountInString(body)
	if length == 0 {
		return 0
	}
	return (length + SegmentLength - 1) / SegmentLength
}
