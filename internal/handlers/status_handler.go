package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/waterplan/cadastre-ingest/internal/repository"
)

// StatusHandler serves read-only views of ingestion state: upload outcomes,
// current parcel generations, and zone rollups.
type StatusHandler struct {
	uploads   repository.UploadRepository
	parcels   repository.ParcelRepository
	summaries repository.ZoneSummaryRepository
}

// NewStatusHandler creates a new StatusHandler instance.
func NewStatusHandler(uploads repository.UploadRepository, parcels repository.ParcelRepository, summaries repository.ZoneSummaryRepository) *StatusHandler {
	return &StatusHandler{
		uploads:   uploads,
		parcels:   parcels,
		summaries: summaries,
	}
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetUpload handles GET /api/v1/uploads/:id.
// Returns the upload row with its processing outcome, or 404 when the upload
// id is unknown.
func (h *StatusHandler) GetUpload(c *gin.Context) {
	uploadID := c.Param("id")

	job, err := h.uploads.GetByID(c.Request.Context(), uploadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to query upload"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "upload not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetZoneParcels handles GET /api/v1/zones/:zone/parcels.
// Returns the current parcel generation for the zone; superseded rows are
// never served here.
func (h *StatusHandler) GetZoneParcels(c *gin.Context) {
	zone := c.Param("zone")

	parcels, err := h.parcels.CurrentByZone(c.Request.Context(), zone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to query parcels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"zone":    zone,
		"count":   len(parcels),
		"parcels": parcels,
	})
}

// GetZoneSummary handles GET /api/v1/zones/:zone/summary.
// The optional date query parameter (YYYY-MM-DD) defaults to today.
func (h *StatusHandler) GetZoneSummary(c *gin.Context) {
	zone := c.Param("zone")

	date := c.Query("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "date must be formatted YYYY-MM-DD"})
		return
	}

	summary, err := h.summaries.GetByZoneAndDate(c.Request.Context(), zone, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to query zone summary"})
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no summary for zone and date"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
