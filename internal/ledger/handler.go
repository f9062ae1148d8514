package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"boxbook/internal/api"
	"boxbook/internal/auth"
	"boxbook/internal/tariff"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ledger  Ledger
	tariffs tariff.Repository
}

func NewHandler(l Ledger, tariffs tariff.Repository) *Handler {
	return &Handler{ledger: l, tariffs: tariffs}
}

// GetMyCredits godoc
// @Summary      My credit balance
// @Description  Returns the remaining credits on the caller's active tariff assignment.
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BalanceResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /credits [get]
func (h *Handler) GetMyCredits(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	assignment, err := h.tariffs.GetActiveAssignment(c.Request.Context(), userID, time.Now())
	if err != nil {
		if errors.Is(err, tariff.ErrNoActiveAssignment) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "no active tariff assignment", Code: "NO_ACTIVE_TARIFF"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to fetch assignment"})
		return
	}

	remaining, err := h.ledger.Peek(c.Request.Context(), assignment.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to read balance"})
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		TariffAssignmentID: assignment.ID,
		Remaining:          remaining,
		Unlimited:          remaining == nil,
	})
}

// GetMyTransactions godoc
// @Summary      My credit transactions
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   CreditTransaction
// @Failure      404     {object}  api.ErrorResponse
// @Router       /credits/transactions [get]
func (h *Handler) GetMyTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	assignment, err := h.tariffs.GetActiveAssignment(c.Request.Context(), userID, time.Now())
	if err != nil {
		if errors.Is(err, tariff.ErrNoActiveAssignment) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "no active tariff assignment", Code: "NO_ACTIVE_TARIFF"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to fetch assignment"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.ledger.Transactions(c.Request.Context(), assignment.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
