package enrollment

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"boxbook/internal/api"
	"boxbook/internal/auth"
	"boxbook/internal/ledger"
	"boxbook/internal/logger"
	"boxbook/internal/schedule"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Enroll godoc
// @Summary Enroll in a class
// @Description Books a seat in the class, or joins the waitlist when the class is full
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 201 {object} Result
// @Failure 400 {object} api.ErrorResponse
// @Failure 402 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/enroll [post]
func (h *Handler) Enroll(c *gin.Context) {
	userID, classID, ok := h.identifiers(c)
	if !ok {
		return
	}

	res, err := h.service.Enroll(c.Request.Context(), userID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// Cancel godoc
// @Summary Cancel an enrollment
// @Description Cancels the caller's enrollment; a timely cancellation refunds the credit, and a freed seat is offered to the waitlist
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 200 {object} CancelResult
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/enroll [delete]
func (h *Handler) Cancel(c *gin.Context) {
	userID, classID, ok := h.identifiers(c)
	if !ok {
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), userID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// MoveToWaitlist godoc
// @Summary Give up a seat and join the waitlist
// @Description Vacates the caller's confirmed seat, refunds the credit and re-queues them at the tail of the waitlist
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 200 {object} Result
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/waitlist [post]
func (h *Handler) MoveToWaitlist(c *gin.Context) {
	userID, classID, ok := h.identifiers(c)
	if !ok {
		return
	}

	res, err := h.service.MoveToWaitlist(c.Request.Context(), userID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// WaitlistCancel godoc
// @Summary Leave the waitlist
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 200 {object} CancelResult
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/waitlist [delete]
func (h *Handler) WaitlistCancel(c *gin.Context) {
	userID, classID, ok := h.identifiers(c)
	if !ok {
		return
	}

	res, err := h.service.WaitlistCancel(c.Request.Context(), userID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Reinstate godoc
// @Summary Reinstate a cancelled enrollment
// @Description Re-activates a previously cancelled enrollment; the server decides between a seat and the waitlist based on current capacity
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 200 {object} Result
// @Failure 402 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/reinstate [post]
func (h *Handler) Reinstate(c *gin.Context) {
	userID, classID, ok := h.identifiers(c)
	if !ok {
		return
	}

	res, err := h.service.Reinstate(c.Request.Context(), userID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Promote godoc
// @Summary Promote a waitlisted member into a seat
// @Description Admin override that admits a specific waitlisted member while a seat is free
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Class instance ID"
// @Param request body PromoteRequest true "Member to promote"
// @Success 200 {object} Result
// @Failure 400 {object} api.ErrorResponse
// @Failure 402 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /admin/classes/{id}/promote [post]
func (h *Handler) Promote(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid class ID"})
		return
	}

	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	res, err := h.service.Promote(c.Request.Context(), req.UserID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetClassRoster godoc
// @Summary Get the roster for a class
// @Description Returns enrollments grouped by status; the waitlist is in promotion order
// @Tags enrollments
// @Produce json
// @Param id path int true "Class instance ID"
// @Success 200 {object} ClassRoster
// @Failure 404 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /classes/{id}/enrollments [get]
func (h *Handler) GetClassRoster(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid class ID"})
		return
	}

	roster, err := h.service.GetClassRoster(c.Request.Context(), classID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, roster)
}

// GetMyEnrollments godoc
// @Summary List the caller's enrollments
// @Tags enrollments
// @Produce json
// @Success 200 {array} Enrollment
// @Security BearerAuth
// @Router /enrollments [get]
func (h *Handler) GetMyEnrollments(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	list, err := h.service.GetUserEnrollments(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// DeleteRecord godoc
// @Summary Delete a cancelled enrollment record
// @Tags admin
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} api.MessageResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Security BearerAuth
// @Router /admin/enrollments/{id} [delete]
func (h *Handler) DeleteRecord(c *gin.Context) {
	enrollmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid enrollment ID"})
		return
	}

	if err := h.service.DeleteCancelledRecord(c.Request.Context(), enrollmentID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Enrollment record deleted"})
}

func (h *Handler) identifiers(c *gin.Context) (userID, classID int, ok bool) {
	userID, ok = auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return 0, 0, false
	}

	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid class ID"})
		return 0, 0, false
	}

	return userID, classID, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var window *BookingWindowError
	if errors.As(err, &window) {
		resp := gin.H{"error": window.Error(), "code": "BOOKING_WINDOW"}
		if !window.OpensAt.IsZero() {
			resp["opens_at"] = window.OpensAt.Format(time.RFC3339)
		}
		c.JSON(http.StatusForbidden, resp)
		return
	}

	switch {
	case errors.Is(err, ErrNoActiveTariff):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error(), Code: "NO_ACTIVE_TARIFF"})
	case errors.Is(err, ErrWeeklyLimit):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error(), Code: "WEEKLY_LIMIT"})
	case errors.Is(err, ErrDailyLimit):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error(), Code: "DAILY_LIMIT"})
	case errors.Is(err, ledger.ErrNoCredits):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: err.Error(), Code: "NO_CREDITS"})
	case errors.Is(err, ErrDuplicateEnrollment):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "DUPLICATE_ENROLLMENT"})
	case errors.Is(err, ErrCapacityFull):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "CAPACITY_FULL"})
	case errors.Is(err, ErrClassCancelled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "CLASS_CANCELLED"})
	case errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrNotWaitlisted), errors.Is(err, ErrNotCancelled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "INVALID_STATE"})
	case errors.Is(err, ErrEnrollmentNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, schedule.ErrClassNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, ErrTryAgain):
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: err.Error(), Code: "TRY_AGAIN"})
	default:
		logger.Error("enrollment request failed", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
