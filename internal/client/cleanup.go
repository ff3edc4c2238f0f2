package client

import "regexp"

var markupRun = regexp.MustCompile(`[*"]+`)

// Clean strips every run of '*' and '"' from a streamed fragment. Models
// tend to decorate titles and quotes with them and the terminal shows raw
// text.
func Clean(s string) string {
	return markupRun.ReplaceAllString(s, "")
}
