package http

import "github.com/gofiber/fiber/v3"

const runningState = "RUNNING"

// StateSource reports the lifecycle state of the sync loop.
type StateSource interface {
	State() string
}

// Health answers 200 while the sync loop is running and 503 otherwise.
func Health(src StateSource) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		state := src.State()
		if state != runningState {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "DOWN", "state": state})
		}
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"status": "UP", "state": state})
	}
}
