package agent

import (
	"regexp"
	"strings"
)

var imageRequestRe = regexp.MustCompile(`draw|create|generate.*image|picture|photo`)

// LooksLikeImageRequest guesses whether text asks for an image. It is only
// a status hint; requests always ask for both modalities.
func LooksLikeImageRequest(text string) bool {
	return imageRequestRe.MatchString(strings.ToLower(text))
}
