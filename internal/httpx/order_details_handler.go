package httpx

import (
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"net/http"
)

type OrderDetailsHandler struct {
	Recorder *orders.Recorder
	Reader   *orders.Reader
}

func (h *OrderDetailsHandler) Register(r chi.Router) {
	r.Post("/add_order_detail", h.add)
	r.Get("/order_details", h.list)
	r.Get("/order_details/{id}", h.get)
	r.Post("/order_details/{id}/retry_ledger", h.retry)
}

func (h *OrderDetailsHandler) add(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.OrderDetailInput{
		OrderID:   f.str("order_id"),
		ProductID: f.str("product_id"),
		Quantity:  f.int("quantity"),
		PriceEach: f.float("price_each"),
	}
	if err := f.err(); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.Recorder.RecordOrderDetail(r.Context(), in, actor(r))
	switch {
	case err == nil:
		created(w, r, d)
	case d.ID != "":
		// stored, but the ledger mirror is not confirmed
		writeErrorWith(w, r, err, &d)
	default:
		writeError(w, r, err)
	}
}

func (h *OrderDetailsHandler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reader.GetOrderDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrderDetailsHandler) list(w http.ResponseWriter, r *http.Request) {
	status := orders.LedgerStatus(r.URL.Query().Get("ledger_status"))
	if status == "" {
		status = orders.LedgerPending
	}
	ds, err := h.Reader.OrderDetailsByStatus(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *OrderDetailsHandler) retry(w http.ResponseWriter, r *http.Request) {
	d, err := h.Recorder.RetryLedger(r.Context(), chi.URLParam(r, "id"), actor(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, d)
	case d.ID != "" && orders.KindOf(err) != orders.KindConflict:
		writeErrorWith(w, r, err, &d)
	default:
		writeError(w, r, err)
	}
}
