package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/models"
)

type createOrderReq struct {
	DeliveryAddressID int64 `json:"delivery_address_id" binding:"required"`
}

type updateStatusReq struct {
	Status      models.OrderStatus `json:"status" binding:"required"`
	DeliveryFee *decimal.Decimal   `json:"delivery_fee"`
}

type updatePaidReq struct {
	Paid *bool `json:"paid" binding:"required"`
}

func (s *Server) createOrder(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := s.svc.Orders.CreateFromCart(c, id, req.DeliveryAddressID, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) listOrders(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	page, err := s.svc.Orders.ListHistory(c, id, currentUser(c), c.Query("cursor"), intQuery(c, "limit", 0))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) listPendingOrders(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	orders, err := s.svc.Orders.ListPending(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) salesHistory(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	sales, err := s.svc.Orders.SalesHistory(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := s.svc.Orders.Get(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) payOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := s.svc.Orders.PayFromWallet(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := s.svc.Orders.TransitionStatus(c, id, req.Status, req.DeliveryFee)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) updateOrderPaid(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updatePaidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := s.svc.Orders.SetPaid(c, id, *req.Paid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) orderTransactions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entries, err := s.svc.Wallets.ListByOrder(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
