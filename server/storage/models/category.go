package models

import (
	"strings"
	"unicode/utf8"
)

const (
	CategoryAcademic     = "Academic"
	CategoryOnlineCourse = "Online Course"
	CategoryCompetition  = "Competition"
	CategoryWorkshop     = "Workshop"
	CategoryInternship   = "Internship"
	CategoryOther        = "Other"

	maxCategoryLen = 64
)

var Categories = []string{
	CategoryAcademic,
	CategoryOnlineCourse,
	CategoryCompetition,
	CategoryWorkshop,
	CategoryInternship,
	CategoryOther,
}

// NormalizeCategory maps "" to Other and fixed entries to their canonical
// spelling. Anything else is kept as a custom category.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return CategoryOther
	}
	for _, known := range Categories {
		if strings.EqualFold(c, known) {
			return known
		}
	}
	return c
}

func IsFixedCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ValidateCategory(c string) error {
	if utf8.RuneCountInString(c) > maxCategoryLen {
		return &ValidationError{Field: "category", Message: "Category is too long"}
	}
	return nil
}
