package httpapi

import (
	"querymind/app/service/session"

	"github.com/gofiber/fiber/v2"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messagesResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := s.pipeline.ProcessMessage(c.UserContext(), req.SessionID, req.Message)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (s *Server) messages(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	messages, err := s.pipeline.Messages(c.UserContext(), sessionID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []session.Message{}
	}

	return c.JSON(messagesResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}

func (s *Server) summary(c *fiber.Ctx) error {
	summary, err := s.pipeline.Summary(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if summary == nil {
		return c.JSON(fiber.Map{"message": "No summary available for this session"})
	}

	return c.JSON(summary)
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	if err := s.pipeline.DeleteSession(c.UserContext(), c.Params("id")); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Stats())
}
