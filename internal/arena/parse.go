package arena

import "strings"

const (
	codeMarker     = "CODE:"
	progressMarker = "PROGRESS_MESSAGES:"
)

var cannedProgress = []string{
	"Analyzed the subtask requirements",
	"Drafted the component structure",
	"Implemented the core logic",
	"Reviewed the result before submitting",
}

// parseWorkReply splits a persona's free-text reply into code and
// progress lines using the CODE: / PROGRESS_MESSAGES: markers. When the
// markers are absent the whole reply is treated as code and canned
// progress lines are substituted.
func parseWorkReply(text string) (code string, progress []string) {
	codeIdx := strings.Index(text, codeMarker)
	progIdx := strings.Index(text, progressMarker)

	if codeIdx == -1 {
		return strings.TrimSpace(stripFences(text)), append([]string(nil), cannedProgress...)
	}

	codeStart := codeIdx + len(codeMarker)
	if progIdx > codeIdx {
		code = text[codeStart:progIdx]
	} else {
		code = text[codeStart:]
	}
	code = strings.TrimSpace(stripFences(code))

	if progIdx != -1 {
		rest := text[progIdx+len(progressMarker):]
		if progIdx < codeIdx {
			rest = text[progIdx+len(progressMarker) : codeIdx]
		}
		for _, line := range strings.Split(rest, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
			if line != "" {
				progress = append(progress, line)
			}
		}
	}
	if len(progress) == 0 {
		progress = append([]string(nil), cannedProgress...)
	}
	return code, progress
}

// stripFences removes a surrounding markdown code fence, including an
// optional language hint.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx != -1 {
		t = t[idx+1:]
	}
	if j := strings.LastIndex(t, "```"); j != -1 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}
