package tariff

import (
	"net/http"
	"strconv"
	"time"

	"boxbook/internal/api"
	"boxbook/internal/schedule"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// CreatePlan godoc
// @Summary      Create tariff plan
// @Description  Creates a plan with its booking-window and cancellation configuration. Admin only.
// @Tags         tariffs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePlanRequest  true  "Plan"
// @Success      201      {object}  TariffPlan
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	plan, err := h.repo.CreatePlan(c.Request.Context(), CreatePlan{
		Name:                 req.Name,
		AdvanceBookingHours:  req.AdvanceBookingHours,
		CancellationCutoffHr: req.CancellationCutoffHr,
		MaxPerDay:            req.MaxPerDay,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create plan"})
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// CreateWeeklyRule godoc
// @Summary      Add weekly rule to plan
// @Description  Attaches a per-class-type exception to a plan. Admin only.
// @Tags         tariffs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        planID   path      int                      true  "Plan ID"
// @Param        request  body      CreateWeeklyRuleRequest  true  "Rule"
// @Success      201      {object}  WeeklyRule
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/plans/{planID}/rules [post]
func (h *Handler) CreateWeeklyRule(c *gin.Context) {
	planID, err := strconv.Atoi(c.Param("planID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid plan ID"})
		return
	}

	var req CreateWeeklyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	if !schedule.ClassType(req.ClassType).Valid() {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "unknown class type"})
		return
	}

	rule, err := h.repo.CreateWeeklyRule(c.Request.Context(), planID, CreateWeeklyRule{
		ClassType:  req.ClassType,
		Allowed:    req.Allowed,
		MaxPerWeek: req.MaxPerWeek,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// CreateAssignment godoc
// @Summary      Assign plan to user
// @Description  Grants a user a tariff plan, optionally seeding credits. Admin only.
// @Tags         tariffs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateAssignmentRequest  true  "Assignment"
// @Success      201      {object}  TariffAssignment
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/assignments [post]
func (h *Handler) CreateAssignment(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	startsOn, err := time.Parse("2006-01-02", req.StartsOn)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "starts_on must be YYYY-MM-DD"})
		return
	}

	expiresOn, err := time.Parse("2006-01-02", req.ExpiresOn)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "expires_on must be YYYY-MM-DD"})
		return
	}

	if expiresOn.Before(startsOn) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "expires_on must not be before starts_on"})
		return
	}

	assignment, err := h.repo.CreateAssignment(c.Request.Context(), CreateAssignment{
		UserID:         req.UserID,
		PlanID:         req.PlanID,
		StartsOn:       startsOn,
		ExpiresOn:      expiresOn,
		InitialCredits: req.InitialCredits,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create assignment"})
		return
	}

	c.JSON(http.StatusCreated, assignment)
}
