package utils

import "strings"

// Truncate returns a truncated string with "..." if it exceeds maxLen.
// This function is Unicode-safe, counting runes instead of bytes.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// ExtractCodeBlocks returns the bodies of all ``` fenced blocks joined by a
// blank line. Content without fences, or with no closed block, is returned as is.
func ExtractCodeBlocks(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}

	var blocks []string
	var current []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "```") {
			if inBlock {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			inBlock = !inBlock
			continue
		}
		if inBlock {
			current = append(current, line)
		}
	}

	if len(blocks) == 0 {
		return content
	}
	return strings.Join(blocks, "\n\n")
}

// Words lower-cases s and splits it on whitespace.
func Words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
