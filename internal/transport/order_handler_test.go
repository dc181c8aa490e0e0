package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"threadmart/internal/domain"
	"threadmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newOrderTestServer(userID uuid.UUID, asAdmin bool) (*chi.Mux, *mockOrderRepository) {
	repo := newMockOrderRepository()
	orderService := service.NewOrderService(repo)

	logger, _ := zap.NewDevelopment()
	handler := NewOrderHandler(orderService, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router, identityAs(userID, asAdmin), passthrough)
	return router, repo
}

func orderPayload(productID uuid.UUID, quantity int) map[string]interface{} {
	return map[string]interface{}{
		"order_items": []map[string]interface{}{
			{"product_id": productID.String(), "quantity": quantity},
		},
		"shipping_address": map[string]string{
			"full_name":   "Test Buyer",
			"address":     "1 Main St",
			"city":        "Springfield",
			"postal_code": "12345",
			"country":     "US",
		},
		"payment_method": "card",
	}
}

func TestCreateOrder(t *testing.T) {
	userID := uuid.New()
	router, repo := newOrderTestServer(userID, false)
	productID := repo.addProduct(19.99, 10)

	w := postJSON(router, "/api/orders", orderPayload(productID, 2))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	var order domain.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if order.UserID != userID {
		t.Errorf("Order user is %s, expected %s", order.UserID, userID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("Order status is %s, expected pending", order.Status)
	}
	expectedTotal := 19.99*2 + service.ShippingCost
	if order.TotalAmount != expectedTotal {
		t.Errorf("Total is %f, expected %f", order.TotalAmount, expectedTotal)
	}
	if repo.products[productID].stock != 8 {
		t.Errorf("Stock is %d, expected 8", repo.products[productID].stock)
	}
}

func TestCreateOrderErrors(t *testing.T) {
	router, repo := newOrderTestServer(uuid.New(), false)
	productID := repo.addProduct(19.99, 1)

	// Insufficient stock
	if w := postJSON(router, "/api/orders", orderPayload(productID, 5)); w.Code != http.StatusBadRequest {
		t.Errorf("Insufficient stock: expected 400, got %d", w.Code)
	}

	// Unknown product
	if w := postJSON(router, "/api/orders", orderPayload(uuid.New(), 1)); w.Code != http.StatusNotFound {
		t.Errorf("Unknown product: expected 404, got %d", w.Code)
	}

	// Malformed product ID
	payload := orderPayload(productID, 1)
	payload["order_items"] = []map[string]interface{}{{"product_id": "not-a-uuid", "quantity": 1}}
	if w := postJSON(router, "/api/orders", payload); w.Code != http.StatusBadRequest {
		t.Errorf("Malformed product ID: expected 400, got %d", w.Code)
	}

	// Empty items
	payload = orderPayload(productID, 1)
	payload["order_items"] = []map[string]interface{}{}
	if w := postJSON(router, "/api/orders", payload); w.Code != http.StatusBadRequest {
		t.Errorf("Empty items: expected 400, got %d", w.Code)
	}

	// Zero quantity
	if w := postJSON(router, "/api/orders", orderPayload(productID, 0)); w.Code != http.StatusBadRequest {
		t.Errorf("Zero quantity: expected 400, got %d", w.Code)
	}

	// Missing shipping address
	payload = orderPayload(productID, 1)
	delete(payload, "shipping_address")
	if w := postJSON(router, "/api/orders", payload); w.Code != http.StatusBadRequest {
		t.Errorf("Missing shipping address: expected 400, got %d", w.Code)
	}
}

func TestGetOrderOwnershipOverHTTP(t *testing.T) {
	owner := uuid.New()
	router, repo := newOrderTestServer(owner, false)
	productID := repo.addProduct(10.00, 5)

	w := postJSON(router, "/api/orders", orderPayload(productID, 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d", w.Code)
	}
	var order domain.Order
	json.Unmarshal(w.Body.Bytes(), &order)

	// The owner can fetch it
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Owner fetch: expected 200, got %d", rec.Code)
	}

	// A different non-admin user gets 403
	strangerRouter := chi.NewRouter()
	logger, _ := zap.NewDevelopment()
	NewOrderHandler(service.NewOrderService(repo), logger).
		RegisterRoutes(strangerRouter, identityAs(uuid.New(), false), passthrough)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	rec = httptest.NewRecorder()
	strangerRouter.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Stranger fetch: expected 403, got %d", rec.Code)
	}

	// An admin can fetch any order
	adminRouter := chi.NewRouter()
	NewOrderHandler(service.NewOrderService(repo), logger).
		RegisterRoutes(adminRouter, identityAs(uuid.New(), true), passthrough)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	rec = httptest.NewRecorder()
	adminRouter.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Admin fetch: expected 200, got %d", rec.Code)
	}

	// Unknown order
	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown order: expected 404, got %d", rec.Code)
	}
}

func TestMyOrders(t *testing.T) {
	userID := uuid.New()
	router, repo := newOrderTestServer(userID, false)
	productID := repo.addProduct(10.00, 20)

	for i := 0; i < 3; i++ {
		if w := postJSON(router, "/api/orders", orderPayload(productID, 1)); w.Code != http.StatusCreated {
			t.Fatalf("Create %d failed: %d", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/myorders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var orders []domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("Got %d orders, expected 3", len(orders))
	}
}

func TestAdminOrderOperations(t *testing.T) {
	userRouter, repo := newOrderTestServer(uuid.New(), false)
	productID := repo.addProduct(25.00, 10)

	w := postJSON(userRouter, "/api/orders", orderPayload(productID, 2))
	if w.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d", w.Code)
	}
	var order domain.Order
	json.Unmarshal(w.Body.Bytes(), &order)

	// The plain user cannot list all orders or change status; the admin
	// group is guarded by RequireAdmin in the real router, here by the
	// admin identity middleware wired below.
	logger, _ := zap.NewDevelopment()
	adminRouter := chi.NewRouter()
	NewOrderHandler(service.NewOrderService(repo), logger).
		RegisterRoutes(adminRouter, identityAs(uuid.New(), true), passthrough)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/", nil)
	rec := httptest.NewRecorder()
	adminRouter.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Admin list: expected 200, got %d", rec.Code)
	}

	// Status transition
	w = postJSONPut(adminRouter, "/api/orders/"+order.ID.String()+"/status", map[string]string{
		"order_status": "shipped",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status update: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var updated domain.Order
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Status != domain.OrderStatusShipped {
		t.Errorf("Status is %s, expected shipped", updated.Status)
	}

	// Unknown status
	w = postJSONPut(adminRouter, "/api/orders/"+order.ID.String()+"/status", map[string]string{
		"order_status": "teleported",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown status: expected 400, got %d", w.Code)
	}

	// Cancelling restocks; cancelling again is idempotent
	w = postJSONPut(adminRouter, "/api/orders/"+order.ID.String()+"/status", map[string]string{
		"order_status": "cancelled",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Cancel: expected 200, got %d", w.Code)
	}
	if repo.products[productID].stock != 10 {
		t.Errorf("Stock after cancel is %d, expected 10", repo.products[productID].stock)
	}

	w = postJSONPut(adminRouter, "/api/orders/"+order.ID.String()+"/status", map[string]string{
		"order_status": "cancelled",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Repeated cancel: expected 200, got %d", w.Code)
	}
	if repo.products[productID].stock != 10 {
		t.Errorf("Stock after repeated cancel is %d, expected 10", repo.products[productID].stock)
	}
}

func postJSONPut(router http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
