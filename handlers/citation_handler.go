package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/parkwatch/parking-backend/services"
	"github.com/sirupsen/logrus"
)

type CitationHandler struct {
	Service *services.CitationSearchService
}

func NewCitationHandler(service *services.CitationSearchService) *CitationHandler {
	return &CitationHandler{Service: service}
}

// GetParkingTickets handles GET /api/parking-tickets?tag=<value>
func (h *CitationHandler) GetParkingTickets(c *fiber.Ctx) error {
	requestID := uuid.NewString()
	tag := c.Query("tag")

	logger := logrus.WithFields(logrus.Fields{
		"component":  "CitationHandler",
		"request_id": requestID,
		"tag":        tag,
	})

	if tag == "" {
		logger.Warn("Missing tag query parameter")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required parameter 'tag'",
			"usage": "Use /api/parking-tickets?tag=YOUR_TAG_NUMBER",
		})
	}

	result, err := h.Service.SearchByTag(c.Context(), tag)
	if err != nil {
		logger.WithError(err).Error("Citation search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch parking ticket data",
			"message": err.Error(),
		})
	}

	logger.WithField("total_citations", result.Summary.TotalCitations).Info("Citation search succeeded")
	return c.JSON(result)
}

// Home handles GET / with the API self-description.
func (h *CitationHandler) Home(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        "Miami Beach Parking Tickets API",
		"description": "API to fetch parking ticket information from Miami-Dade Clerk's office",
		"endpoints": fiber.Map{
			"/api/parking-tickets": fiber.Map{
				"method":      "GET",
				"description": "Fetch parking tickets by license plate tag number",
				"parameters": fiber.Map{
					"tag": "License plate tag number (required)",
				},
				"example": "/api/parking-tickets?tag=ABC123",
			},
		},
		"usage": "Make a GET request to /api/parking-tickets?tag=YOUR_TAG_NUMBER",
	})
}
