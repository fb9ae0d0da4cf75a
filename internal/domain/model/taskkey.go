package model

import "regexp"

// taskKeyPattern is shared by commit messages, PR titles and branch names.
var taskKeyPattern = regexp.MustCompile(`[A-Z]+-[0-9]+`)

// ExtractTaskKey returns the first task key found in s, or "" if none.
func ExtractTaskKey(s string) string {
	return taskKeyPattern.FindString(s)
}

// ExtractTaskKeyFromPR looks at the title first and only falls back to the
// source branch when the title carries no key.
func ExtractTaskKeyFromPR(title, branch string) string {
	if key := ExtractTaskKey(title); key != "" {
		return key
	}
	return ExtractTaskKey(branch)
}
