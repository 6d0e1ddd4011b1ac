package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/handlers/render"
	"github.com/vmarkelov/pointwallet/internal/logger"
	"github.com/vmarkelov/pointwallet/internal/models"
	"github.com/vmarkelov/pointwallet/internal/service/point"
)

type pointService interface {
	CreateWallet(ctx context.Context) (models.Wallet, error)
	GetWallet(ctx context.Context, walletID int64) (point.WalletInfo, error)
	AcquirePoints(ctx context.Context, walletID int64, amount decimal.Decimal) error
	ConsumePoints(ctx context.Context, walletID int64, amount decimal.Decimal) error
	PointsCloseToExpiry(ctx context.Context, walletID int64) ([]models.ExpiringPoints, error)
}

type WalletHandler struct {
	pointService pointService
	logger       logger.Logger
}

func NewWallet(pointService pointService, l logger.Logger) *WalletHandler {
	return &WalletHandler{
		pointService: pointService,
		logger:       l,
	}
}

func (h *WalletHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wallets", h.create)
	mux.HandleFunc("GET /wallets/{id}", h.get)
	mux.HandleFunc("PUT /wallets/{id}", h.transact)

	return mux
}

type transactionResponse struct {
	Type         string    `json:"type"`
	TransactedAt time.Time `json:"transactedAt"`
	Amount       float64   `json:"amount"`
}

type expiringPointsResponse struct {
	ExpiresOn time.Time `json:"expiresOn"`
	Amount    float64   `json:"amount"`
}

type walletResponse struct {
	ID                  int64                    `json:"id"`
	Balance             float64                  `json:"balance"`
	Transactions        []transactionResponse    `json:"transactions"`
	PointsCloseToExpiry []expiringPointsResponse `json:"pointsCloseToExpiry,omitempty"`
}

func (h *WalletHandler) create(w http.ResponseWriter, r *http.Request) {
	type response struct {
		WalletID int64 `json:"walletId"`
	}

	wallet, err := h.pointService.CreateWallet(r.Context())
	if err != nil {
		h.logger.Error("Failed to create wallet", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, response{WalletID: wallet.ID})
}

func (h *WalletHandler) get(w http.ResponseWriter, r *http.Request) {
	walletID, err := walletIDFromPath(r)
	if err != nil {
		render.ServiceError(w, "Invalid wallet id", http.StatusBadRequest)
		return
	}

	info, err := h.pointService.GetWallet(r.Context(), walletID)

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrWalletNotFound):
		render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		return
	default:
		h.logger.Error("Failed to get wallet", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	balance, _ := info.Wallet.Balance.Float64()
	res := walletResponse{
		ID:           info.Wallet.ID,
		Balance:      balance,
		Transactions: make([]transactionResponse, 0, len(info.History)),
	}
	for _, pt := range info.History {
		amount, _ := pt.Amount.Float64()
		res.Transactions = append(res.Transactions, transactionResponse{
			Type:         pt.Type,
			TransactedAt: pt.TransactedAt,
			Amount:       amount,
		})
	}

	if strings.Contains(r.URL.Query().Get("with"), "pointsCloseToExpiry") {
		expiring, err := h.pointService.PointsCloseToExpiry(r.Context(), walletID)
		if err != nil {
			h.logger.Error("Failed to get points close to expiry", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res.PointsCloseToExpiry = make([]expiringPointsResponse, 0, len(expiring))
		for _, ep := range expiring {
			amount, _ := ep.Amount.Float64()
			res.PointsCloseToExpiry = append(res.PointsCloseToExpiry, expiringPointsResponse{
				ExpiresOn: ep.ExpiresOn,
				Amount:    amount,
			})
		}
	}

	render.JSON(w, res)
}

func (h *WalletHandler) transact(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Type  string          `json:"type" validate:"required,oneof=aquisition consumption"`
		Point decimal.Decimal `json:"point" validate:"required"`
	}

	type response struct {
		Message string `json:"message"`
	}

	walletID, err := walletIDFromPath(r)
	if err != nil {
		render.ServiceError(w, "Invalid wallet id", http.StatusBadRequest)
		return
	}

	req, err := render.BindAndValidate[request](w, r)
	if err != nil {
		return
	}

	switch req.Type {
	case models.TransactionTypeAquisition:
		err = h.pointService.AcquirePoints(r.Context(), walletID, req.Point)
	case models.TransactionTypeConsumption:
		err = h.pointService.ConsumePoints(r.Context(), walletID, req.Point)
	}

	switch {
	case err == nil:
		render.JSON(w, response{Message: "point " + req.Type})
	case errors.Is(err, apperrors.ErrWalletNotFound):
		render.ServiceError(w, "Wallet not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		render.ServiceError(w, "Insufficient balance", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAmountInvalid):
		render.ServiceError(w, "Point amount must be positive", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrLedgerInconsistent):
		h.logger.Error("Ledger inconsistency detected", "wallet_id", walletID, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	default:
		h.logger.Error("Failed to process point transaction", "wallet_id", walletID, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Wallet ids are positive, the clearing wallet (id 0) is not addressable.
func walletIDFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("wallet id must be positive")
	}

	return id, nil
}
