package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safar/medtrade/internal/models"
)

type createUserReq struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type createHospitalReq struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name" binding:"required"`
}

type assignOwnerReq struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type addressReq struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.svc.Hospitals.CreateUser(c, req.WalletAddress)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) createHospital(c *gin.Context) {
	var req createHospitalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	hospital, err := s.svc.Hospitals.CreateHospital(c, req.Name, req.CompanyName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, hospital)
}

func (s *Server) listHospitals(c *gin.Context) {
	hospitals, err := s.svc.Hospitals.List(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

func (s *Server) getHospital(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	hospital, err := s.svc.Hospitals.Get(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (s *Server) assignOwner(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req assignOwnerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	hospital, err := s.svc.Hospitals.AssignOwner(c, id, req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (s *Server) addDeliveryAddress(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	addr, err := s.svc.Hospitals.AddDeliveryAddress(c, id, models.DeliveryAddress{
		Street:     req.Street,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}

func (s *Server) listDeliveryAddresses(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	addrs, err := s.svc.Hospitals.ListDeliveryAddresses(c, id, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, addrs)
}
