package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/catalog"
)

type productResponse struct {
	Data catalog.Product `json:"data"`
}

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestProductHandlers(t *testing.T) {
	svc := newService(t, catalog.NewMemoryStore(), nil, nil)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	body := `{"title":"desk lamp","price":35.5,"description":"Adjustable LED desk lamp","category":"home"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Desk lamp", created.Data.Title)

	t.Run("get", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+created.Data.ID, nil), "id", created.Data.ID)
		rec := httptest.NewRecorder()
		handler.Product(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var got productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, "35.5", got.Data.Price.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil), "id", "abc")
		rec := httptest.NewRecorder()
		handler.Product(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errResp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		require.Equal(t, "INVALID_ID", errResp.Error.Code)
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=1&limit=5", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
		var list productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Data, 1)
		require.Equal(t, 1, list.Pagination.TotalPages)
	})

	t.Run("by category", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/category/home", nil), "category", "home")
		rec := httptest.NewRecorder()
		handler.ProductsByCategory(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var list productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Data, 1)
	})

	t.Run("validation error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"title":"x"}`))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errResp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		require.Equal(t, "VALIDATION_ERROR", errResp.Error.Code)
		require.NotEmpty(t, errResp.Error.Details["fields"])
	})

	t.Run("delete", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+created.Data.ID, nil), "id", created.Data.ID)
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		req = withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+created.Data.ID, nil), "id", created.Data.ID)
		rec = httptest.NewRecorder()
		handler.Delete(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
