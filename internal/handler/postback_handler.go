package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trackforge/postback-engine/internal/domain"
)

const defaultListLimit = 50

type PostbackService interface {
	Create(ctx context.Context, conversionID string, rawConfig map[string]any) (*domain.Postback, error)
	GetByID(ctx context.Context, id string) (*domain.Postback, error)
	GetByConversionID(ctx context.Context, conversionID string) ([]domain.Postback, error)
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Postback, error)
	GetAttempts(ctx context.Context, postbackID string) ([]domain.DeliveryAttempt, error)
	OverrideStatus(ctx context.Context, id string, status domain.Status) error
}

type PostbackHandler struct {
	service PostbackService
}

func NewPostbackHandler(service PostbackService) (*PostbackHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("postback service is required")
	}
	return &PostbackHandler{service: service}, nil
}

func RegisterPostbackRoutes(router fiber.Router, service PostbackService) error {
	h, err := NewPostbackHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/postbacks", h.CreatePostback)
	v1.Get("/postbacks/:id", h.GetPostback)
	v1.Get("/postbacks", h.ListPostbacks)
	v1.Get("/postbacks/:id/attempts", h.GetPostbackAttempts)
	v1.Post("/postbacks/:id/status", h.OverridePostbackStatus)
	v1.Get("/conversions/:conversionId/postbacks", h.GetConversionPostbacks)

	return nil
}

type createPostbackRequest struct {
	ConversionID string         `json:"conversionId"`
	Config       map[string]any `json:"config"`
}

type overrideStatusRequest struct {
	Status string `json:"status"`
}

type postbackResponse struct {
	ID            string            `json:"id"`
	ConversionID  string            `json:"conversionId"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Payload       map[string]string `json:"payload,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Status        string            `json:"status"`
	AttemptCount  int               `json:"attemptCount"`
	MaxAttempts   int               `json:"maxAttempts"`
	LastAttemptAt *time.Time        `json:"lastAttemptAt,omitempty"`
	NextAttemptAt *time.Time        `json:"nextAttemptAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	ResponseCode  *int              `json:"responseCode,omitempty"`
	ResponseBody  string            `json:"responseBody,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	PostbackID    string    `json:"postbackId"`
	AttemptNumber int       `json:"attemptNumber"`
	ResponseCode  *int      `json:"responseCode,omitempty"`
	ResponseBody  *string   `json:"responseBody,omitempty"`
	ErrorMessage  *string   `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type listPostbacksResponse struct {
	Data []postbackResponse `json:"data"`
}

func (h *PostbackHandler) CreatePostback(c *fiber.Ctx) error {
	var req createPostbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	postback, err := h.service.Create(c.Context(), req.ConversionID, req.Config)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toPostbackResponse(postback))
}

func (h *PostbackHandler) GetPostback(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	postback, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPostbackResponse(postback))
}

func (h *PostbackHandler) ListPostbacks(c *fiber.Ctx) error {
	rawStatus := strings.TrimSpace(c.Query("status"))
	if rawStatus == "" {
		return toHTTPError(fmt.Errorf("%w: status query parameter is required", domain.ErrValidation))
	}

	status, err := domain.ParseStatusFromString(rawStatus)
	if err != nil {
		return toHTTPError(err)
	}

	postbacks, err := h.service.ListByStatus(c.Context(), status, c.QueryInt("limit", defaultListLimit))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listPostbacksResponse{Data: toPostbackResponses(postbacks)})
}

func (h *PostbackHandler) GetPostbackAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	// 404 for unknown postbacks rather than an empty trail.
	if _, err := h.service.GetByID(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	attempts, err := h.service.GetAttempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptResponse{
			ID:            attempt.ID,
			PostbackID:    attempt.PostbackID,
			AttemptNumber: attempt.AttemptNumber,
			ResponseCode:  attempt.ResponseCode,
			ResponseBody:  attempt.ResponseBody,
			ErrorMessage:  attempt.ErrorMessage,
			CreatedAt:     attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *PostbackHandler) OverridePostbackStatus(c *fiber.Ctx) error {
	var req overrideStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.OverrideStatus(c.Context(), id, status); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"postbackId": id,
		"status":     status.String(),
	})
}

func (h *PostbackHandler) GetConversionPostbacks(c *fiber.Ctx) error {
	conversionID := strings.TrimSpace(c.Params("conversionId"))
	postbacks, err := h.service.GetByConversionID(c.Context(), conversionID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listPostbacksResponse{Data: toPostbackResponses(postbacks)})
}

func toPostbackResponses(postbacks []domain.Postback) []postbackResponse {
	responses := make([]postbackResponse, 0, len(postbacks))
	for _, postback := range postbacks {
		p := postback
		responses = append(responses, toPostbackResponse(&p))
	}
	return responses
}

func toPostbackResponse(p *domain.Postback) postbackResponse {
	if p == nil {
		return postbackResponse{}
	}

	return postbackResponse{
		ID:            p.ID,
		ConversionID:  p.ConversionID,
		URL:           p.URL,
		Method:        p.Method.String(),
		Payload:       p.Payload,
		Headers:       p.Headers,
		Status:        p.Status.String(),
		AttemptCount:  p.AttemptCount,
		MaxAttempts:   p.MaxAttempts,
		LastAttemptAt: p.LastAttemptAt,
		NextAttemptAt: p.NextAttemptAt,
		CompletedAt:   p.CompletedAt,
		ResponseCode:  p.ResponseCode,
		ResponseBody:  p.ResponseBody,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMalformedURL):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
