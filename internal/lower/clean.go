package lower

import "strings"

// Clean implements two forward passes over a function's linear
// instruction/label stream: trimming unreachable instructions after a
// terminator, then trimming everything after the first `ret` within a
// single basic block. Both passes exist because lowering keeps emitting
// after a `ret`, `break` or `continue` in the middle of a block: the
// statements that follow it, and the trailing `jump` a branch arm gets when
// its last emitted line is not itself a terminator, would otherwise leave
// stray code in the same block.
func Clean(lines []string) []string {
	return trimDuplicateTerminators(trimUnreachable(lines))
}

// trimUnreachable drops every non-label line following a terminator, up to
// (but not including) the next label.
func trimUnreachable(lines []string) []string {
	out := make([]string, 0, len(lines))
	afterTerminator := false
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if isLabelLine(trimmed) {
			out = append(out, ln)
			afterTerminator = false
			continue
		}
		if afterTerminator {
			continue
		}
		out = append(out, ln)
		if isTerminatorLine(trimmed) {
			afterTerminator = true
		}
	}
	return out
}

// trimDuplicateTerminators keeps only the first `ret` in each basic block
// (delimited by label lines), dropping everything after it up to the next
// label.
func trimDuplicateTerminators(lines []string) []string {
	out := make([]string, 0, len(lines))
	seenRet := false
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if isLabelLine(trimmed) {
			out = append(out, ln)
			seenRet = false
			continue
		}
		if seenRet {
			continue
		}
		out = append(out, ln)
		if strings.HasPrefix(trimmed, "ret") {
			seenRet = true
		}
	}
	return out
}

func isLabelLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "%") && strings.HasSuffix(trimmed, ":")
}
