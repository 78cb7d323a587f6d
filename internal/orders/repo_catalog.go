package orders

import (
	"context"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"time"
)

// UpdateInventory creates or merges inventory/{product_id}.
func (r *Repo) UpdateInventory(ctx context.Context, in InventoryInput) (item InventoryItem, created bool, err error) {
	created, err = r.Store.Upsert(ctx, docstore.Inventory, in.ProductID, docstore.Fields{
		"product_id":         in.ProductID,
		"quantity":           in.Quantity,
		"additional_details": in.AdditionalDetails,
	})
	if err != nil {
		return InventoryItem{}, false, storageErr("update inventory", err)
	}
	return InventoryItem(in), created, nil
}

func (r *Repo) GetInventory(ctx context.Context, productID string) (InventoryItem, error) {
	doc, err := r.Store.Get(ctx, docstore.Inventory, productID)
	if err != nil {
		return InventoryItem{}, storageErr("get inventory", err)
	}
	var it InventoryItem
	if err := doc.DataTo(&it); err != nil {
		return InventoryItem{}, E(KindStorage, "decode inventory", err)
	}
	it.ProductID = doc.ID
	return it, nil
}

func (r *Repo) AddProduct(ctx context.Context, in ProductInput) (Product, error) {
	id, err := r.Store.Add(ctx, docstore.Products, docstore.Fields{
		"name":            in.Name,
		"details":         in.Details,
		"manufacturer_id": in.ManufacturerID,
		"price":           in.Price,
	})
	if err != nil {
		return Product{}, storageErr("add product", err)
	}
	return Product{ID: id, Name: in.Name, Details: in.Details, ManufacturerID: in.ManufacturerID, Price: in.Price}, nil
}

func (r *Repo) AddManufacturer(ctx context.Context, in ManufacturerInput) (Manufacturer, error) {
	id, err := r.Store.Add(ctx, docstore.Manufacturers, docstore.Fields{
		"name":    in.Name,
		"details": in.Details,
	})
	if err != nil {
		return Manufacturer{}, storageErr("add manufacturer", err)
	}
	return Manufacturer{ID: id, Name: in.Name, Details: in.Details}, nil
}

func (r *Repo) AddCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	id, err := r.Store.Add(ctx, docstore.Customers, docstore.Fields{
		"name":    in.Name,
		"email":   in.Email,
		"address": in.Address,
		"phone":   in.Phone,
	})
	if err != nil {
		return Customer{}, storageErr("add customer", err)
	}
	return Customer{ID: id, Name: in.Name, Email: in.Email, Address: in.Address, Phone: in.Phone}, nil
}

func (r *Repo) AddOrder(ctx context.Context, in OrderInput) (Order, error) {
	id, err := r.Store.Add(ctx, docstore.Orders, docstore.Fields{
		"customer_id": in.CustomerID,
		"product_id":  in.ProductID,
		"quantity":    in.Quantity,
		"total_price": in.TotalPrice,
		"order_date":  docstore.ServerTimestamp,
	})
	if err != nil {
		return Order{}, storageErr("add order", err)
	}
	return Order{
		ID:         id,
		CustomerID: in.CustomerID,
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		TotalPrice: in.TotalPrice,
		OrderDate:  time.Now().UTC(),
	}, nil
}

func (r *Repo) AddPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	id, err := r.Store.Add(ctx, docstore.Payments, docstore.Fields{
		"order_id":       in.OrderID,
		"amount":         in.Amount,
		"payment_method": in.PaymentMethod,
		"payment_date":   docstore.ServerTimestamp,
	})
	if err != nil {
		return Payment{}, storageErr("add payment", err)
	}
	return Payment{
		ID:            id,
		OrderID:       in.OrderID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		PaymentDate:   time.Now().UTC(),
	}, nil
}
