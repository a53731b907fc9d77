package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/anonto42/postacad/backend/internal/metrics"
	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/payments"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the Stripe event payload read from the request
const maxWebhookBody = 64 << 10

// CheckoutProvider starts payments and reads their completion; *payments.Checkout satisfies it
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
	ParseWebhook(payload []byte, signature string) (*payments.CompletedCheckout, error)
}

// PurchaseHandler handles purchases of priced resource posts
type PurchaseHandler struct {
	postRepository        repositories.PostRepository
	transactionRepository repositories.TransactionRepository
	checkout              CheckoutProvider
	metrics               *metrics.Metrics
	log                   *zap.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler. A nil checkout records purchases as
// completed without a payment step.
func NewPurchaseHandler(postRepo repositories.PostRepository, txRepo repositories.TransactionRepository, checkout CheckoutProvider, m *metrics.Metrics, log *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		postRepository:        postRepo,
		transactionRepository: txRepo,
		checkout:              checkout,
		metrics:               m,
		log:                   log,
	}
}

// RegisterPurchaseRoutes registers the authenticated purchase routes
func (h *PurchaseHandler) RegisterPurchaseRoutes(g *echo.Group) {
	g.POST("/posts/:id/purchase", h.Purchase)
	g.GET("/posts/:id/transactions", h.GetTransactions)
}

// RegisterWebhookRoutes registers the public Stripe webhook
func (h *PurchaseHandler) RegisterWebhookRoutes(g *echo.Group) {
	g.POST("/webhooks/stripe", h.StripeWebhook)
}

// Purchase records a transaction for a priced post and, with Stripe configured, returns the
// checkout URL to pay it
func (h *PurchaseHandler) Purchase(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return repoError(err, "Post")
	}
	if !post.IsLocked() {
		return echo.NewHTTPError(http.StatusBadRequest, "This post is free")
	}
	if post.CreatorID == currentUserID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot purchase your own post")
	}
	if !post.Availability {
		return echo.NewHTTPError(http.StatusConflict, "This resource is not available")
	}

	tx := &models.Transaction{
		PostID:  post.ID.Hex(),
		BuyerID: currentUserID,
		Amount:  post.Price,
		Status:  models.TransactionPending,
	}
	if h.checkout == nil {
		tx.Status = models.TransactionCompleted
	}
	if err := h.transactionRepository.CreateTransaction(ctx, tx); err != nil {
		h.metrics.Purchase("rejected")
		return repoError(err, "Post")
	}

	if h.checkout == nil {
		h.metrics.Purchase("completed")
		h.log.Info("Purchase completed without checkout", zap.String("transaction_id", tx.ID))
		return respond(c, http.StatusCreated, tx)
	}

	title := post.Caption
	if title == "" {
		title = post.ResourceType
	}
	session, err := h.checkout.CreateSession(ctx, payments.SessionRequest{
		TransactionID: tx.ID,
		PostID:        tx.PostID,
		Title:         title,
		Amount:        tx.Amount,
	})
	if err == nil {
		err = h.transactionRepository.SetCheckoutSession(ctx, tx.ID, session.ID)
	}
	if err != nil {
		h.metrics.Purchase("error")
		h.log.Error("Failed to start checkout", zap.String("transaction_id", tx.ID), zap.Error(err))
		if markErr := h.transactionRepository.MarkFailed(ctx, tx.ID); markErr != nil {
			h.log.Error("Failed to mark transaction failed", zap.String("transaction_id", tx.ID), zap.Error(markErr))
		}
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to start checkout")
	}

	tx.CheckoutSessionID = session.ID
	tx.CheckoutURL = session.URL
	h.metrics.Purchase("checkout")
	return respond(c, http.StatusCreated, tx)
}

// GetTransactions lists the viewer's transactions for a post
func (h *PurchaseHandler) GetTransactions(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	txs, err := h.transactionRepository.GetTransactionsForPostAndUser(c.Request().Context(), c.Param("id"), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, txs)
}

// StripeWebhook completes the transaction of a paid checkout session
func (h *PurchaseHandler) StripeWebhook(c echo.Context) error {
	if h.checkout == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Payments are not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable payload")
	}

	completed, err := h.checkout.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrBadSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid signature")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if completed == nil {
		return c.NoContent(http.StatusOK)
	}

	tx, err := h.transactionRepository.CompleteByCheckoutSession(c.Request().Context(), completed.SessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.log.Warn("Webhook for unknown checkout session", zap.String("session_id", completed.SessionID))
			return c.NoContent(http.StatusOK)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.metrics.Purchase("completed")
	h.log.Info("Purchase completed", zap.String("transaction_id", tx.ID), zap.String("post_id", tx.PostID))
	return c.NoContent(http.StatusOK)
}
