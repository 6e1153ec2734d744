package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersHandler_List(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.signIn(t)

	env.remote.Put(domain.CollectionOrders, "ada@example.com", domain.Document{
		"orders": []any{
			map[string]any{
				"paymentId":  "pi_1",
				"orderedOn":  "2026-03-01",
				"orderItems": []any{map[string]any{"_id": "p1", "name": "Phone", "discountedPrice": 80, "quantity": 1}},
			},
		},
	})

	// without a loaded user the session email is used
	rr := env.do(t, http.MethodGet, "/api/orders", "", cookies...)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []domain.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "pi_1", got[0].PaymentID)

	env.store.SetUser(context.Background(), domain.User{ID: "u1", Email: "other@example.com"})

	rr = env.do(t, http.MethodGet, "/api/orders", "", cookies...)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestOrdersHandler_Checkout(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.signIn(t)

	rr := env.do(t, http.MethodPost, "/api/checkout", "", cookies...)
	assert.Equal(t, http.StatusConflict, rr.Code)

	env.store.SetUser(context.Background(), domain.User{ID: "u1", Email: "ada@example.com"})

	rr = env.do(t, http.MethodPost, "/api/checkout", "", cookies...)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	env.do(t, http.MethodPost, "/api/cart", phoneJSON)
	env.do(t, http.MethodPost, "/api/cart", phoneJSON)
	env.do(t, http.MethodPost, "/api/cart", caseJSON)

	rr = env.do(t, http.MethodPost, "/api/checkout", "", cookies...)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary domain.CheckoutSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summary))
	assert.Equal(t, "u1", summary.UserID)
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, 210.0, summary.RegularTotal)
	assert.Equal(t, 169.5, summary.DiscountedTotal)
	assert.Equal(t, 40.5, summary.Savings)
	assert.Len(t, summary.Lines, 2)
}
