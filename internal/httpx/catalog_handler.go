package httpx

import (
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"net/http"
)

type CatalogHandler struct {
	Catalog *orders.Catalog
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Post("/update_inventory", h.updateInventory)
	r.Get("/inventory/{productID}", h.getInventory)
	r.Post("/add_product", h.addProduct)
	r.Post("/register_manufacturer", h.registerManufacturer)
	r.Post("/register_customer", h.registerCustomer)
	r.Post("/place_order", h.placeOrder)
	r.Post("/process_payment", h.processPayment)
}

func (h *CatalogHandler) updateInventory(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.InventoryInput{
		ProductID:         f.str("product_id"),
		Quantity:          f.int("quantity"),
		AdditionalDetails: f.str("additional_details"),
	}
	if err := f.err(); err != nil {
		writeError(w, r, err)
		return
	}
	item, _, err := h.Catalog.UpdateInventory(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, item)
}

func (h *CatalogHandler) getInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.Repo.GetInventory(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.ProductInput{
		Name:           f.str("name"),
		Details:        f.str("details"),
		ManufacturerID: f.str("manufacturer_id"),
		Price:          f.float("price"),
	}
	if err := f.err(); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.AddProduct(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, p)
}

func (h *CatalogHandler) registerManufacturer(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.ManufacturerInput{Name: f.str("name"), Details: f.str("details")}
	m, err := h.Catalog.RegisterManufacturer(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, m)
}

func (h *CatalogHandler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.CustomerInput{
		Name:    f.str("name"),
		Email:   f.str("email"),
		Address: f.str("address"),
		Phone:   f.str("phone"),
	}
	c, err := h.Catalog.RegisterCustomer(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, c)
}

func (h *CatalogHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.OrderInput{
		CustomerID: f.str("customer_id"),
		ProductID:  f.str("product_id"),
		Quantity:   f.int("quantity"),
		TotalPrice: f.float("total_price"),
	}
	if err := f.err(); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Catalog.PlaceOrder(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, o)
}

func (h *CatalogHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	f := newForm(r)
	in := orders.PaymentInput{
		OrderID:       f.str("order_id"),
		Amount:        f.float("amount"),
		PaymentMethod: f.str("payment_method"),
	}
	if err := f.err(); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.ProcessPayment(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, p)
}
