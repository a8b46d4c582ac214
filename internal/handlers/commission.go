package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

const maxUploadMemory = 8 << 20

// CommissionHandler is the back office: users, events, products, orders
// and image uploads. Every route here sits behind the gate's commission
// session check, except login which lives in AuthHandler.
type CommissionHandler struct {
	userService    *services.UserService
	quizService    *services.QuizService
	eventService   *services.EventService
	productService *services.ProductService
	shopService    *services.ShopService
	orderService   *services.OrderService
	uploadService  *services.UploadService
	logger         *zap.Logger
}

func NewCommissionHandler(
	userService *services.UserService,
	quizService *services.QuizService,
	eventService *services.EventService,
	productService *services.ProductService,
	shopService *services.ShopService,
	orderService *services.OrderService,
	uploadService *services.UploadService,
	logger *zap.Logger,
) *CommissionHandler {
	return &CommissionHandler{
		userService:    userService,
		quizService:    quizService,
		eventService:   eventService,
		productService: productService,
		shopService:    shopService,
		orderService:   orderService,
		uploadService:  uploadService,
		logger:         logger,
	}
}

// CommissionRouter registers the back-office routes.
func CommissionRouter(r chi.Router, handler *CommissionHandler) {
	r.Get("/users", handler.ListUsers)
	r.Delete("/users/{userID}", handler.DeleteUser)

	r.Get("/events", handler.ListEvents)
	r.Post("/events", handler.CreateEvent)
	r.Delete("/events/{eventID}", handler.DeleteEvent)

	r.Get("/products", handler.ListProducts)
	r.Post("/products", handler.CreateProduct)
	r.Patch("/products/{productID}", handler.UpdateProduct)
	r.Delete("/products/{productID}", handler.DeleteProduct)

	r.Get("/orders", handler.ListOrders)
	r.Patch("/orders/{orderID}", handler.UpdateOrderStatus)
	r.Delete("/orders/{orderID}", handler.DeleteOrder)

	r.Post("/upload", handler.Upload)
}

// CommissionUser is a user row in the back office, with the quiz result
// attached when one exists.
type CommissionUser struct {
	types.User
	Quiz *types.QuizResult `json:"quiz"`
}

type CommissionUserListResponse struct {
	Users []CommissionUser `json:"users"`
}

func (h *CommissionHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.serverError(w, "user list failed", err)
		return
	}
	results, err := h.quizService.List(r.Context())
	if err != nil {
		h.serverError(w, "quiz list failed", err)
		return
	}

	quizByUser := make(map[int]types.QuizResult, len(results))
	for _, result := range results {
		quizByUser[result.UserID] = result
	}

	rows := make([]CommissionUser, 0, len(users))
	for _, user := range users {
		row := CommissionUser{User: user}
		if result, ok := quizByUser[user.ID]; ok {
			row.Quiz = &result
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, CommissionUserListResponse{Users: rows})
}

// DeleteUser removes an applicant account. Existing orders keep their
// denormalized snapshots; a later cancellation of the user's pending order
// simply has nowhere to refund to.
func (h *CommissionHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}
	if err := h.userService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Пользователь не найден")
			return
		}
		h.serverError(w, "user delete failed", err)
		return
	}
	writeSuccess(w)
}

func (h *CommissionHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context(), false)
	if err != nil {
		h.serverError(w, "event list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

type CreateEventRequest struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

type EventResponse struct {
	Success bool        `json:"success"`
	Event   types.Event `json:"event"`
}

func (h *CommissionHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Name == "" || req.Date == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "Заполните обязательные поля")
		return
	}

	event, err := h.eventService.Create(r.Context(), types.Event{
		Name:        req.Name,
		Date:        req.Date,
		Image:       req.Image,
		Description: req.Description,
	})
	if err != nil {
		h.serverError(w, "event create failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Success: true, Event: event})
}

func (h *CommissionHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}
	if err := h.eventService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Мероприятие не найдено")
			return
		}
		h.serverError(w, "event delete failed", err)
		return
	}
	writeSuccess(w)
}

func (h *CommissionHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.shopService.Products(r.Context())
	if err != nil {
		h.serverError(w, "product list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductListResponse{Products: products})
}

type CreateProductRequest struct {
	Name        string         `json:"name"`
	Price       *int           `json:"price"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Stock       *int           `json:"stock"`
	Sizes       map[string]int `json:"sizes"`
	IsNew       bool           `json:"isNew"`
}

type ProductResponse struct {
	Success bool          `json:"success"`
	Product types.Product `json:"product"`
}

func (h *CommissionHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Некорректный формат")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "Укажите название")
		return
	}
	if req.Price == nil || *req.Price < 0 {
		writeError(w, http.StatusUnprocessableEntity, "Укажите корректную цену")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusUnprocessableEntity, "Укажите описание")
		return
	}
	if err := validateCounts(req.Sizes); err != nil || (req.Stock != nil && *req.Stock < 0) {
		writeError(w, http.StatusUnprocessableEntity, "Количество не может быть отрицательным")
		return
	}

	product, err := h.productService.Create(r.Context(), types.Product{
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
		Image:       req.Image,
		Stock:       req.Stock,
		Sizes:       req.Sizes,
		IsNew:       req.IsNew,
	})
	if err != nil {
		h.serverError(w, "product create failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{Success: true, Product: product})
}

type UpdateProductRequest struct {
	Stock *int           `json:"stock"`
	Sizes map[string]int `json:"sizes"`
	IsNew *bool          `json:"isNew"`
}

func (h *CommissionHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Некорректный формат")
		return
	}
	if req.Stock == nil && len(req.Sizes) == 0 && req.IsNew == nil {
		writeError(w, http.StatusUnprocessableEntity, "Нечего обновлять")
		return
	}
	if (req.Stock != nil && *req.Stock < 0) || validateCounts(req.Sizes) != nil {
		writeError(w, http.StatusUnprocessableEntity, "Количество не может быть отрицательным")
		return
	}

	product, err := h.productService.Update(r.Context(), id, store.ProductUpdate{
		Stock: req.Stock,
		Sizes: req.Sizes,
		IsNew: req.IsNew,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Товар не найден")
			return
		}
		h.serverError(w, "product update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{Success: true, Product: product})
}

func (h *CommissionHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}
	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Товар не найден")
			return
		}
		h.serverError(w, "product delete failed", err)
		return
	}
	writeSuccess(w)
}

type OrderListResponse struct {
	Orders []types.Order `json:"orders"`
}

func (h *CommissionHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.List(r.Context())
	if err != nil {
		h.serverError(w, "order list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: orders})
}

type UpdateOrderStatusRequest struct {
	Status types.OrderStatus `json:"status"`
}

// UpdateOrderStatus applies a lifecycle transition. Repeating the order's
// current status succeeds without effect; leaving a terminal status is 409.
func (h *CommissionHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "Некорректный статус")
		return
	}

	if err := h.orderService.SetStatus(r.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Заказ не найден")
		case errors.Is(err, services.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "Недопустимый переход статуса")
		default:
			h.serverError(w, "order status update failed", err)
		}
		return
	}
	writeSuccess(w)
}

// DeleteOrder removes an order. A still-pending order is cancelled first,
// refunding the buyer.
func (h *CommissionHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный ID")
		return
	}
	if err := h.orderService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Заказ не найден")
			return
		}
		h.serverError(w, "order delete failed", err)
		return
	}
	writeSuccess(w)
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Upload accepts one multipart image and returns its public URL.
func (h *CommissionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Файл не выбран")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Файл не выбран")
		return
	}
	defer file.Close()

	url, err := h.uploadService.SaveImage(
		r.Context(),
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUploadTooLarge):
			writeError(w, http.StatusUnprocessableEntity, "Файл слишком большой (макс. 5 МБ)")
		case errors.Is(err, services.ErrUploadNotImage):
			writeError(w, http.StatusUnprocessableEntity, "Допустимы только изображения")
		case errors.Is(err, services.ErrUploadBadExtension):
			writeError(w, http.StatusUnprocessableEntity, "Недопустимый формат файла")
		default:
			h.logger.Error("upload failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Ошибка загрузки")
		}
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{URL: url})
}

func (h *CommissionHandler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Ошибка сервера")
}

func validateCounts(sizes map[string]int) error {
	for _, quantity := range sizes {
		if quantity < 0 {
			return errors.New("negative quantity")
		}
	}
	return nil
}
