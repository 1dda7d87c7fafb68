package crawler

import "regexp"

// Filter - Reports whether a discovered device name must not be visited.
type Filter func(name string) bool

// ExcludePattern - Filter excluding names matching the pattern. An empty pattern excludes nothing.
func ExcludePattern(pattern string) (Filter, error) {
	if pattern == "" {
		return ExcludeNothing, nil
	}
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return regex.MatchString, nil
}

// ExcludeNothing - Filter letting every name through.
func ExcludeNothing(string) bool {
	return false
}
