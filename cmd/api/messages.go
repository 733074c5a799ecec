package main

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/Gee2424/HubFreelance-sub001/internal/conversation"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

const previewLen = 80

// listMessages returns every message the caller sent or received.
func (s *Server) listMessages(c echo.Context) error {
	msgs, err := s.stores.Messages.ListInvolving(c.Request().Context(), claimsOf(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// messageHistory returns the thread with the counterpart in :id, oldest
// first.
func (s *Server) messageHistory(c echo.Context) error {
	counterpart, err := paramID(c, "id")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	msgs, err := s.stores.Messages.GetMessageHistory(c.Request().Context(), claimsOf(c).UserID, counterpart, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiverId"`
	JobID      *int64 `json:"jobId"`
	Content    string `json:"content"`
}

// sendMessage stores a message, notifies the receiver's realtime
// subscriptions and records the activity.
func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if req.ReceiverID <= 0 || content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "receiverId and content are required")
	}
	if utf8.RuneCountInString(content) > data.MaxMessageLength {
		return echo.NewHTTPError(http.StatusBadRequest, "content is too long")
	}

	ctx := c.Request().Context()
	exists, err := s.stores.Users.UserExists(ctx, req.ReceiverID)
	if err != nil {
		return err
	}
	if !exists {
		return echo.NewHTTPError(http.StatusNotFound, "recipient not found")
	}

	claims := claimsOf(c)
	saved, err := s.stores.Messages.SaveMessage(ctx, &data.Message{
		SenderID:   claims.UserID,
		ReceiverID: req.ReceiverID,
		JobID:      req.JobID,
		Content:    content,
	})
	if err != nil {
		return err
	}

	// Delivery is best-effort; the message is persisted and the receiver
	// picks it up on the next read.
	if err := s.broker.Publish(ctx, *saved); err != nil {
		slog.Warn("realtime publish failed", "receiver", saved.ReceiverID, "err", err)
	}
	s.record(ctx, claims.UserID, data.MessageSent{CounterpartID: saved.ReceiverID, Preview: truncate(content, previewLen)})
	return c.JSON(http.StatusCreated, saved)
}

// markRead flips the read flag of a message addressed to the caller.
func (s *Server) markRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msg, err := s.stores.Messages.MarkRead(c.Request().Context(), id, claimsOf(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

// listConversations groups the caller's messages by counterpart, newest
// first.
func (s *Server) listConversations(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	userID := claimsOf(c).UserID
	msgs, err := s.stores.Messages.ListInvolving(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	convs := conversation.Aggregate(msgs, userID)
	if limit > 0 {
		convs = conversation.Top(convs, limit)
	}
	return c.JSON(http.StatusOK, convs)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
