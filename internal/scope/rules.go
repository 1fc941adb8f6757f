package scope

import "regexp"

// ValidatePatterns compiles every pattern and returns the first error.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return err
		}
	}
	return nil
}
