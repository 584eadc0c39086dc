package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/wallet"
)

type walletTransactionReq struct {
	Type        models.WalletTransactionType `json:"type" binding:"required"`
	Amount      decimal.Decimal              `json:"amount"`
	Description string                       `json:"description"`
	OrderID     *uuid.UUID                   `json:"order_id"`
}

// setBalanceReq carries either an absolute balance or a signed delta.
type setBalanceReq struct {
	Balance     *decimal.Decimal `json:"balance"`
	Delta       *decimal.Decimal `json:"delta"`
	Description string           `json:"description"`
}

func (s *Server) listWalletTransactions(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	page, err := s.svc.Wallets.ListTransactions(c, id, currentUser(c),
		models.WalletTransactionType(c.Query("type")), intQuery(c, "page", 1), intQuery(c, "page_size", 20))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) recordWalletTransaction(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req walletTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	entry := wallet.Entry{
		HospitalID:  id,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.OrderID != nil {
		entry.OrderID = uuid.NullUUID{UUID: *req.OrderID, Valid: true}
	}

	tx, err := s.svc.Wallets.RecordTransaction(c, entry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) setWalletBalance(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req setBalanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if (req.Balance == nil) == (req.Delta == nil) {
		badRequest(c, "exactly one of balance or delta is required")
		return
	}

	var (
		tx  *models.WalletTransaction
		err error
	)
	if req.Balance != nil {
		tx, err = s.svc.Wallets.SetBalance(c, id, *req.Balance, req.Description)
	} else {
		tx, err = s.svc.Wallets.AdjustBalance(c, id, *req.Delta, req.Description)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
