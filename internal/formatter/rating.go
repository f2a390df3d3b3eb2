package formatter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/caseforms/formfill-cli/internal/model"
)

var (
	ratingMarker      = regexp.MustCompile(`(?i)RATING:\s*(\d+)`)
	standaloneDigit   = regexp.MustCompile(`\b([1-9])\b`)
	explanationMarker = regexp.MustCompile(`(?is)EXPLANATION:\s*(.+)`)
)

// parseRating extracts a rating number, its option text, and an explanation
// from a rating response. The rating is an int on success and the
// "Not Found" string otherwise; an out-of-range number reports itself in
// the explanation. The expected shape is "RATING: n. <option>" followed by
// an "EXPLANATION:" block, with a lone digit accepted as fallback.
func parseRating(response string, options []string) (rating any, option, explanation string) {
	if response == "" || response == model.AnswerNotFound {
		return model.AnswerMissing, "", ""
	}

	var n int
	if m := ratingMarker.FindStringSubmatch(response); m != nil {
		n, _ = strconv.Atoi(m[1])
	} else if m := standaloneDigit.FindStringSubmatch(response); m != nil {
		n, _ = strconv.Atoi(m[1])
	} else {
		return model.AnswerMissing, "", ""
	}

	if n < 1 || n > len(options) {
		return model.AnswerMissing, "", fmt.Sprintf("Invalid rating: %d", n)
	}

	option = options[n-1]

	if m := explanationMarker.FindStringSubmatch(response); m != nil {
		explanation = strings.TrimSpace(m[1])
	} else if lines := strings.SplitN(response, "\n", 2); len(lines) > 1 {
		explanation = strings.TrimSpace(lines[1])
	}

	return n, option, explanation
}
