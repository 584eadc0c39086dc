package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/models"
)

type listingReq struct {
	Name         string             `json:"name" binding:"required"`
	Manufacturer string             `json:"manufacturer"`
	Code         string             `json:"code" binding:"required"`
	LotNumber    string             `json:"lot_number" binding:"required"`
	Description  string             `json:"description"`
	Unit         models.ProductUnit `json:"unit"`
	Price        decimal.Decimal    `json:"price"`
	Quantity     int                `json:"quantity" binding:"gte=0"`
	ExpiryDate   time.Time          `json:"expiry_date" binding:"required"`
}

type addListingsReq struct {
	Products []listingReq `json:"products" binding:"required,min=1,dive"`
}

func (s *Server) addListings(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req addListingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	listings := make([]inventory.Listing, 0, len(req.Products))
	for _, p := range req.Products {
		listings = append(listings, inventory.Listing{
			Name:         p.Name,
			Manufacturer: p.Manufacturer,
			Code:         p.Code,
			LotNumber:    p.LotNumber,
			Description:  p.Description,
			Unit:         p.Unit,
			Price:        p.Price,
			Quantity:     p.Quantity,
			ExpiryDate:   p.ExpiryDate,
		})
	}

	products, err := s.svc.Inventory.AddListings(c, id, listings)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, products)
}

func (s *Server) listProducts(c *gin.Context) {
	page, err := s.svc.Inventory.List(c, intQuery(c, "page", 1), intQuery(c, "page_size", 20))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	p, err := s.svc.Inventory.Get(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listSellerProducts(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	products, err := s.svc.Inventory.ListBySeller(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
