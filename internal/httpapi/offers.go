package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/models"
)

type offerLineReq struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
	Price     decimal.Decimal `json:"price"`
}

type createOfferReq struct {
	HospitalID int64          `json:"hospital_id" binding:"required"`
	Products   []offerLineReq `json:"products" binding:"required,dive"`
}

type updateOfferReq struct {
	Products []offerLineReq `json:"products" binding:"required,dive"`
}

func toLines(req []offerLineReq) []models.OfferLine {
	lines := make([]models.OfferLine, 0, len(req))
	for _, l := range req {
		lines = append(lines, models.OfferLine{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return lines
}

func (s *Server) createOffer(c *gin.Context) {
	var req createOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := s.svc.Offers.Create(c, req.HospitalID, currentUser(c), toLines(req.Products))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) updateOffer(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := s.svc.Offers.Update(c, id, currentUser(c), toLines(req.Products))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) cancelOffer(c *gin.Context) {
	s.offerAction(c, s.svc.Offers.Cancel)
}

func (s *Server) acceptOffer(c *gin.Context) {
	s.offerAction(c, s.svc.Offers.Accept)
}

func (s *Server) rejectOffer(c *gin.Context) {
	s.offerAction(c, s.svc.Offers.Reject)
}

func (s *Server) offerAction(c *gin.Context, action func(ctx context.Context, offerID, requester uuid.UUID) (*models.Offer, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := action(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) getOffer(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := s.svc.Offers.Get(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) listMyOffers(c *gin.Context) {
	offers, err := s.svc.Offers.ListForUser(c, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (s *Server) listHospitalOffers(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	offers, err := s.svc.Offers.ListByHospital(c, id, models.OfferStatus(c.Query("status")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

// pendingOffer answers 204 when the caller has no pending offer for the hospital.
func (s *Server) pendingOffer(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	o, err := s.svc.Offers.PendingFor(c, currentUser(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if o == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, o)
}
