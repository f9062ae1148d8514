package schedule

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"boxbook/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateClass godoc
// @Summary      Create class instance
// @Description  Schedules one class occurrence. Admin only.
// @Tags         classes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateClassRequest  true  "Class instance"
// @Success      201      {object}  ClassInstance
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /admin/classes [post]
func (h *Handler) CreateClass(c *gin.Context) {
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	classType := ClassType(req.ClassType)
	if !classType.Valid() {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "unknown class type"})
		return
	}

	classDate, err := time.Parse("2006-01-02", req.ClassDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "class_date must be YYYY-MM-DD"})
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "start_time must be RFC3339"})
		return
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "end_time must be RFC3339"})
		return
	}

	if !endTime.After(startTime) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "end_time must be after start_time"})
		return
	}

	class, err := h.repo.CreateClassInstance(c.Request.Context(), CreateClassInstance{
		ClassDate: classDate,
		StartTime: startTime,
		EndTime:   endTime,
		ClassType: classType,
		Capacity:  req.Capacity,
		CoachID:   req.CoachID,
		ZoneName:  req.ZoneName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create class"})
		return
	}

	c.JSON(http.StatusCreated, class)
}

// ListClasses godoc
// @Summary      List classes
// @Description  Returns class instances in a date range with enrollment counts.
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  true  "Start date (YYYY-MM-DD)"
// @Param        to    query     string  true  "End date (YYYY-MM-DD)"
// @Success      200   {array}   ClassInstanceWithCounts
// @Failure      400   {object}  api.ErrorResponse
// @Failure      500   {object}  api.ErrorResponse
// @Router       /classes [get]
func (h *Handler) ListClasses(c *gin.Context) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "from and to query params are required"})
		return
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid from format, use YYYY-MM-DD"})
		return
	}

	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid to format, use YYYY-MM-DD"})
		return
	}

	classes, err := h.repo.ListWithCounts(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to fetch classes"})
		return
	}

	c.JSON(http.StatusOK, classes)
}

// GetClass godoc
// @Summary      Get class instance
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class instance ID"
// @Success      200      {object}  ClassInstance
// @Failure      404      {object}  api.ErrorResponse
// @Router       /classes/{classID} [get]
func (h *Handler) GetClass(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid class ID"})
		return
	}

	class, err := h.repo.GetClassInstance(c.Request.Context(), classID)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "class not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to fetch class"})
		return
	}

	c.JSON(http.StatusOK, class)
}

// CancelClass godoc
// @Summary      Cancel class instance
// @Description  Marks a class as cancelled. Existing enrollments keep their
// @Description  status; all mutations except member cancellations are blocked.
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class instance ID"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/classes/{classID}/cancel [post]
func (h *Handler) CancelClass(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid class ID"})
		return
	}

	if err := h.repo.CancelClassInstance(c.Request.Context(), classID); err != nil {
		if errors.Is(err, ErrClassNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "class not found or already cancelled"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to cancel class"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Class cancelled"})
}
