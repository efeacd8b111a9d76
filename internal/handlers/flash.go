package handlers

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	flashCookie   = "flash"
	flashOutKey   = "flash_out"
	flashLifetime = 5 * time.Minute
	levelSuccess  = "success"
	levelInfo     = "info"
	levelError    = "error"
)

// FlashMessage is a one-shot message carried across a redirect.
type FlashMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// addFlash queues a message for the next response the browser reads.
func addFlash(c *fiber.Ctx, level, text string) {
	pending, _ := c.Locals(flashOutKey).([]FlashMessage)
	pending = append(pending, FlashMessage{Level: level, Text: text})
	c.Locals(flashOutKey, pending)

	body, err := json.Marshal(pending)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(body),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(flashLifetime),
	})
}

// takeFlashes returns and clears the messages queued by a previous response.
func takeFlashes(c *fiber.Ctx) []FlashMessage {
	messages := []FlashMessage{}
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return messages
	}
	c.ClearCookie(flashCookie)

	body, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return messages
	}
	if err := json.Unmarshal(body, &messages); err != nil {
		return []FlashMessage{}
	}
	return messages
}
