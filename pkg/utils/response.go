package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Message(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func Paginated(c *fiber.Ctx, data interface{}, count, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	var next, prev interface{}
	if int64(page*limit) < total {
		next = page + 1
	}
	if page > 1 {
		prev = page - 1
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"count":   count,
		"total":   total,
		"pagination": fiber.Map{
			"currentPage": page,
			"limit":       limit,
			"totalPages":  totalPages,
			"next":        next,
			"prev":        prev,
		},
		"data": data,
	})
}
