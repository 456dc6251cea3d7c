package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"support-agent/internal/usecase"
)

// UseCase is the single operation the handler needs from the turn service.
type UseCase interface {
	Ask(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type Handler struct {
	uc UseCase
}

type askRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Identity       string `json:"identity"`
}

type askResponse struct {
	Output         string `json:"output"`
	Intent         string `json:"intent"`
	RoutingMessage string `json:"routingMessage,omitempty"`
	ConversationID string `json:"conversationId"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	log := slog.With("correlation_id", corrID)

	var req askRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, corrID, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "invalid_body",
		}), nil
	}

	out, err := h.uc.Ask(ctx, usecase.TurnInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Identity:       req.Identity,
	})
	if err != nil {
		status, body := mapError(err)
		log.Warn("turn failed", "status", status, "err", err)
		return respond(status, corrID, body), nil
	}

	log.Info("turn completed", "conversation_id", out.ConversationID, "intent", string(out.Intent))
	return respond(http.StatusOK, corrID, askResponse{
		Output:         out.Output,
		Intent:         string(out.Intent),
		RoutingMessage: out.RoutingMessage,
		ConversationID: out.ConversationID,
	}), nil
}

func mapError(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	default:
		return http.StatusInternalServerError, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	}
}

func respond(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": corrID,
		},
		Body: string(raw),
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
