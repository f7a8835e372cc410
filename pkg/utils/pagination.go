package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

func ParsePagination(c *fiber.Ctx) PaginationParams {
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 10)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func ApplyPagination(db *gorm.DB, p PaginationParams) *gorm.DB {
	return db.Offset(p.Offset).Limit(p.Limit)
}

type SortParams struct {
	Column string
	Desc   bool
}

// ParseSort reads sortBy/sortOrder query params. sortBy values outside the
// allow-list fall back to defaultColumn; sortOrder defaults to descending.
func ParseSort(c *fiber.Ctx, allowed map[string]string, defaultColumn string) SortParams {
	column := defaultColumn
	if mapped, ok := allowed[strings.TrimSpace(c.Query("sortBy"))]; ok {
		column = mapped
	}

	desc := !strings.EqualFold(strings.TrimSpace(c.Query("sortOrder")), "asc")

	return SortParams{Column: column, Desc: desc}
}

func ApplySort(db *gorm.DB, s SortParams) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(s.Column + " " + direction)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
