package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
	"github.com/safar/medtrade/internal/wallet"
)

type OfferService interface {
	Create(ctx context.Context, hospitalID int64, creator uuid.UUID, lines []models.OfferLine) (*models.Offer, error)
	Update(ctx context.Context, offerID, requester uuid.UUID, lines []models.OfferLine) (*models.Offer, error)
	Cancel(ctx context.Context, offerID, requester uuid.UUID) (*models.Offer, error)
	Accept(ctx context.Context, offerID, requester uuid.UUID) (*models.Offer, error)
	Reject(ctx context.Context, offerID, requester uuid.UUID) (*models.Offer, error)
	Get(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	ListByHospital(ctx context.Context, hospitalID int64, status models.OfferStatus) ([]models.Offer, error)
	PendingFor(ctx context.Context, creator uuid.UUID, hospitalID int64) (*models.Offer, error)
	ListForUser(ctx context.Context, userID uuid.UUID) (*models.UserOffers, error)
}

type CartService interface {
	AddSingleItem(ctx context.Context, hospitalID, productID int64, quantity int, requester uuid.UUID) (*models.ShopItem, error)
	RemoveItem(ctx context.Context, hospitalID, itemID int64, requester uuid.UUID) (int64, error)
	GetCart(ctx context.Context, hospitalID int64, requester uuid.UUID) (*models.CartView, error)
}

type OrderService interface {
	CreateFromCart(ctx context.Context, hospitalID, addressID int64, requester uuid.UUID) (*models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus, deliveryFee *decimal.Decimal) (*models.Order, error)
	SetPaid(ctx context.Context, orderID uuid.UUID, paid bool) (*models.Order, error)
	PayFromWallet(ctx context.Context, orderID, requester uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, orderID, requester uuid.UUID) (*models.Order, error)
	ListPending(ctx context.Context, hospitalID int64, requester uuid.UUID) ([]models.Order, error)
	ListHistory(ctx context.Context, hospitalID int64, requester uuid.UUID, cursor string, limit int) (*store.CursorPage, error)
	SalesHistory(ctx context.Context, sellerID int64, requester uuid.UUID) ([]models.SalesRecord, error)
}

type WalletService interface {
	RecordTransaction(ctx context.Context, e wallet.Entry) (*models.WalletTransaction, error)
	SetBalance(ctx context.Context, hospitalID int64, balance decimal.Decimal, description string) (*models.WalletTransaction, error)
	AdjustBalance(ctx context.Context, hospitalID int64, delta decimal.Decimal, description string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, hospitalID int64, requester uuid.UUID, txType models.WalletTransactionType, page, pageSize int) (*store.OffsetPage, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error)
}

type InventoryService interface {
	AddListings(ctx context.Context, sellerID int64, listings []inventory.Listing) ([]models.Product, error)
	Get(ctx context.Context, productID int64) (*models.Product, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]models.Product, error)
	List(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
}

type HospitalService interface {
	CreateUser(ctx context.Context, walletAddress string) (*models.User, error)
	CreateHospital(ctx context.Context, name, companyName string) (*models.Hospital, error)
	AssignOwner(ctx context.Context, hospitalID int64, userID uuid.UUID) (*models.Hospital, error)
	Get(ctx context.Context, hospitalID int64) (*models.Hospital, error)
	List(ctx context.Context) ([]models.Hospital, error)
	AddDeliveryAddress(ctx context.Context, hospitalID int64, addr models.DeliveryAddress, requester uuid.UUID) (*models.DeliveryAddress, error)
	ListDeliveryAddresses(ctx context.Context, hospitalID int64, requester uuid.UUID) ([]models.DeliveryAddress, error)
}

type Services struct {
	Hospitals HospitalService
	Offers    OfferService
	Carts     CartService
	Orders    OrderService
	Wallets   WalletService
	Inventory InventoryService
}

type Server struct {
	engine     *gin.Engine
	svc        Services
	log        *zap.Logger
	adminToken string
}

// NewServer wires the routes. An empty adminToken leaves the admin group
// open; the deployment gateway is expected to guard it.
func NewServer(svc Services, log *zap.Logger, adminToken string) *Server {
	r := gin.New()
	r.ContextWithFallback = true
	r.Use(requestLogger(log), gin.Recovery())
	s := &Server{engine: r, svc: svc, log: log, adminToken: adminToken}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	v1 := s.engine.Group("/api/v1", requireUser())
	{
		v1.GET("/products", s.listProducts)
		v1.GET("/products/:id", s.getProduct)

		offers := v1.Group("/offers")
		offers.POST("", s.createOffer)
		offers.GET("", s.listMyOffers)
		offers.GET("/:id", s.getOffer)
		offers.PUT("/:id", s.updateOffer)
		offers.POST("/:id/cancel", s.cancelOffer)
		offers.POST("/:id/accept", s.acceptOffer)
		offers.POST("/:id/reject", s.rejectOffer)

		hospitals := v1.Group("/hospitals/:id")
		hospitals.GET("/products", s.listSellerProducts)
		hospitals.GET("/addresses", s.listDeliveryAddresses)
		hospitals.POST("/addresses", s.addDeliveryAddress)
		hospitals.GET("/offers", s.listHospitalOffers)
		hospitals.GET("/offers/pending", s.pendingOffer)
		hospitals.GET("/cart", s.getCart)
		hospitals.POST("/cart/items", s.addCartItem)
		hospitals.DELETE("/cart/items/:itemId", s.removeCartItem)
		hospitals.POST("/orders", s.createOrder)
		hospitals.GET("/orders", s.listOrders)
		hospitals.GET("/orders/pending", s.listPendingOrders)
		hospitals.GET("/sales", s.salesHistory)
		hospitals.GET("/wallet/transactions", s.listWalletTransactions)

		orders := v1.Group("/orders")
		orders.GET("/:id", s.getOrder)
		orders.POST("/:id/pay", s.payOrder)
	}

	admin := s.engine.Group("/admin", requireAdmin(s.adminToken))
	{
		admin.POST("/users", s.createUser)
		admin.POST("/hospitals", s.createHospital)
		admin.GET("/hospitals", s.listHospitals)
		admin.GET("/hospitals/:id", s.getHospital)
		admin.PUT("/hospitals/:id/owner", s.assignOwner)
		admin.PUT("/orders/:id/status", s.updateOrderStatus)
		admin.PUT("/orders/:id/paid", s.updateOrderPaid)
		admin.GET("/orders/:id/transactions", s.orderTransactions)
		admin.POST("/hospitals/:id/products", s.addListings)
		admin.POST("/hospitals/:id/wallet/transactions", s.recordWalletTransaction)
		admin.PUT("/hospitals/:id/wallet/balance", s.setWalletBalance)
	}
}
