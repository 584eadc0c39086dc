package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addCartItemReq struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

func (s *Server) getCart(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	view, err := s.svc.Carts.GetCart(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) addCartItem(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := s.svc.Carts.AddSingleItem(c, id, req.ProductID, req.Quantity, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) removeCartItem(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	itemID, ok := int64Param(c, "itemId")
	if !ok {
		return
	}
	removed, err := s.svc.Carts.RemoveItem(c, id, itemID, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
