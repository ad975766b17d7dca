package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"nagarpalika/backend/internal/lifecycle"
	"nagarpalika/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createReportRequest struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Location         string            `json:"location"`
	Category         string            `json:"category"`
	TargetDepartment string            `json:"targetDepartment"`
	Coordinates      *coordinatesField `json:"coordinates"`
}

// coordinatesField accepts {"lat":..,"lng":..} or the same object encoded as a
// string, which is how multipart forms carry it.
type coordinatesField models.Coordinates

func (f *coordinatesField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c, err := parseCoordinates(s)
		if err != nil {
			return err
		}
		*f = coordinatesField(c)
		return nil
	}
	var c models.Coordinates
	if err := json.Unmarshal(data, &c); err != nil {
		return models.NewValidationError("coordinates", "must be an object with lat and lng")
	}
	*f = coordinatesField(c)
	return nil
}

func parseCoordinates(raw string) (models.Coordinates, error) {
	var c models.Coordinates
	if strings.TrimSpace(raw) == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, models.NewValidationError("coordinates", "must be an object with lat and lng")
	}
	return c, nil
}

type updateStatusRequest struct {
	Status models.Status `json:"status"`
}

// CreateReport handles POST /api/reports (JSON or multipart with an image file).
func (h *Handler) CreateReport(c *gin.Context) {
	in, err := h.bindNewReport(c)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.Reports.CreateReport(c.Request.Context(), in, IdentityFrom(c))
	if err != nil {
		h.discardImage(c, in.ImageURL)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// discardImage removes an upload that no stored report refers to.
func (h *Handler) discardImage(c *gin.Context, ref string) {
	if ref == "" || h.Images == nil {
		return
	}
	if err := h.Images.Delete(context.WithoutCancel(c.Request.Context()), ref); err != nil {
		log.Printf("WARN: Failed to discard orphaned image %s: %v", ref, err)
	}
}

func (h *Handler) bindNewReport(c *gin.Context) (lifecycle.NewReport, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") || c.ContentType() == "application/x-www-form-urlencoded" {
		return h.bindForm(c)
	}

	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return lifecycle.NewReport{}, ve
		}
		return lifecycle.NewReport{}, models.NewValidationError("", "Invalid request body")
	}

	in := lifecycle.NewReport{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		Category:         req.Category,
		TargetDepartment: req.TargetDepartment,
	}
	if req.Coordinates != nil {
		in.Coordinates = models.Coordinates(*req.Coordinates)
	}
	return in, nil
}

func (h *Handler) bindForm(c *gin.Context) (lifecycle.NewReport, error) {
	coords, err := parseCoordinates(c.PostForm("coordinates"))
	if err != nil {
		return lifecycle.NewReport{}, err
	}
	in := lifecycle.NewReport{
		Title:            c.PostForm("title"),
		Description:      c.PostForm("description"),
		Location:         c.PostForm("location"),
		Category:         c.PostForm("category"),
		TargetDepartment: c.PostForm("targetDepartment"),
		Coordinates:      coords,
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, models.NewValidationError("image", "Could not read uploaded image")
	}
	if h.Images == nil {
		return in, models.NewValidationError("image", "Image uploads are not enabled")
	}
	if fh.Size > MaxImageBytes {
		return in, models.NewValidationError("image", "Image is larger than 5MB")
	}

	f, err := fh.Open()
	if err != nil {
		return in, err
	}
	defer f.Close()

	ref, err := h.Images.Save(c.Request.Context(), fh.Filename, f)
	if err != nil {
		return in, err
	}
	in.ImageURL = ref
	return in, nil
}

// ListReports handles GET /api/reports, newest first.
// Optional query: department, status, mine=true.
func (h *Handler) ListReports(c *gin.Context) {
	filter := models.ReportFilter{Department: c.Query("department")}

	if s := c.Query("status"); s != "" {
		filter.Status = models.Status(s)
		if !filter.Status.Valid() {
			respondError(c, models.NewValidationError("status", strconv.Quote(s)+" is not a valid status"))
			return
		}
	}

	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		id := IdentityFrom(c)
		if id == nil || id.UserID == "" {
			respondError(c, models.ErrUnauthorized)
			return
		}
		filter.UserID = id.UserID
	}

	reports, err := h.Reports.ListReports(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// GetReport handles GET /api/reports/:id.
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpdateStatus handles PUT /api/reports/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("", "Invalid request body"))
		return
	}

	report, err := h.Reports.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
