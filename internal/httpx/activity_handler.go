package httpx

import (
	"github.com/ariefcatur/go-ledger-orders/internal/activity"
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"net/http"
)

type ActivityHandler struct {
	Activity *activity.Logger
}

func (h *ActivityHandler) Register(r chi.Router) {
	r.Get("/activities", h.list)
}

// list defaults to the caller's own trail, or the unknown-user trail without a session.
func (h *ActivityHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor(r)
	}
	if userID == "" {
		userID = activity.UnknownUser
	}
	entries, err := h.Activity.ByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, orders.E(orders.KindStorage, "list activities", err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
