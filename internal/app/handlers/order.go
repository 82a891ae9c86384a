package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/topup-shop/internal/lib/upload"
	"github.com/linemk/topup-shop/internal/service"
)

// максимальный размер multipart-формы в памяти: скриншот плюс текстовые поля
const maxOrderForm = upload.MaxImageSize + 1<<20

// CreateOrderHandler обрабатывает POST /api/orders (multipart/form-data)
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxOrderForm)
		if err := r.ParseMultipartForm(maxOrderForm); err != nil {
			logger.Warn("invalid multipart form", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid form")
			return
		}

		var price int64
		if raw := r.FormValue("price"); raw != "" {
			p, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || p < 0 {
				writeError(w, logger, http.StatusBadRequest, "invalid price")
				return
			}
			price = p
		}

		req := service.OrderRequest{
			Shop:           r.FormValue("shop"),
			Item:           r.FormValue("item"),
			Price:          price,
			PaymentMethod:  r.FormValue("payment_method"),
			RecipientName:  r.FormValue("recipient_name"),
			RecipientPhone: r.FormValue("recipient_phone"),
			GameID:         r.FormValue("game_id"),
			ServerID:       r.FormValue("server_id"),
		}

		file, _, err := r.FormFile("screenshot")
		switch {
		case err == nil:
			defer file.Close()
			req.Screenshot = io.Reader(file)
		case errors.Is(err, http.ErrMissingFile):
		default:
			logger.Warn("failed to read screenshot", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid screenshot")
			return
		}

		order, err := orderService.PlaceOrder(r.Context(), userID, req)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, order)
	}
}

// OrdersHandler обрабатывает GET /api/orders
func OrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := orderService.Orders(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if orders == nil {
			orders = []*models.Order{}
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}

// ProductsHandler обрабатывает GET /api/shops/{shop}/products
func ProductsHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := orderService.Products(r.Context(), chi.URLParam(r, "shop"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if products == nil {
			products = []*models.Product{}
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}
