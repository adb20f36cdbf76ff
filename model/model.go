package model

// Summary holds the results of a command for display.
type Summary struct {
	Updated []string
	Failed  []string
	Message string
}

// OK reports whether nothing failed.
func (s Summary) OK() bool {
	return len(s.Failed) == 0
}
