package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/validation"
)

// Catalog covers the plain entity writes: each validates, optionally checks the entities it
// points at, writes one document and logs one activity entry.
type Catalog struct {
	Repo            *Repo
	Activity        ActivityLog
	CheckReferences bool
}

func (c *Catalog) UpdateInventory(ctx context.Context, in InventoryInput, actor string) (InventoryItem, bool, error) {
	const op = "update inventory"
	if err := c.check(ctx, op, in, ref{docstore.Products, in.ProductID}); err != nil {
		return InventoryItem{}, false, err
	}
	item, created, err := c.Repo.UpdateInventory(ctx, in)
	if err != nil {
		return InventoryItem{}, false, err
	}
	c.Activity.Log(ctx, actor, "Updated inventory for product ID: "+in.ProductID)
	return item, created, nil
}

func (c *Catalog) AddProduct(ctx context.Context, in ProductInput, actor string) (Product, error) {
	const op = "add product"
	if err := c.check(ctx, op, in, ref{docstore.Manufacturers, in.ManufacturerID}); err != nil {
		return Product{}, err
	}
	p, err := c.Repo.AddProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	c.Activity.Log(ctx, actor, "Added product: "+in.Name)
	return p, nil
}

func (c *Catalog) RegisterManufacturer(ctx context.Context, in ManufacturerInput, actor string) (Manufacturer, error) {
	if err := c.check(ctx, "register manufacturer", in); err != nil {
		return Manufacturer{}, err
	}
	m, err := c.Repo.AddManufacturer(ctx, in)
	if err != nil {
		return Manufacturer{}, err
	}
	c.Activity.Log(ctx, actor, "Registered manufacturer: "+in.Name)
	return m, nil
}

func (c *Catalog) RegisterCustomer(ctx context.Context, in CustomerInput, actor string) (Customer, error) {
	if err := c.check(ctx, "register customer", in); err != nil {
		return Customer{}, err
	}
	cu, err := c.Repo.AddCustomer(ctx, in)
	if err != nil {
		return Customer{}, err
	}
	c.Activity.Log(ctx, actor, "Registered customer: "+in.Name)
	return cu, nil
}

func (c *Catalog) PlaceOrder(ctx context.Context, in OrderInput, actor string) (Order, error) {
	const op = "place order"
	err := c.check(ctx, op, in,
		ref{docstore.Customers, in.CustomerID},
		ref{docstore.Products, in.ProductID},
	)
	if err != nil {
		return Order{}, err
	}
	o, err := c.Repo.AddOrder(ctx, in)
	if err != nil {
		return Order{}, err
	}
	c.Activity.Log(ctx, actor, "Placed order: "+o.ID)
	return o, nil
}

func (c *Catalog) ProcessPayment(ctx context.Context, in PaymentInput, actor string) (Payment, error) {
	const op = "process payment"
	if err := c.check(ctx, op, in, ref{docstore.Orders, in.OrderID}); err != nil {
		return Payment{}, err
	}
	p, err := c.Repo.AddPayment(ctx, in)
	if err != nil {
		return Payment{}, err
	}
	c.Activity.Log(ctx, actor, "Processed payment for order ID: "+in.OrderID)
	return p, nil
}

type ref struct{ collection, id string }

func (c *Catalog) check(ctx context.Context, op string, in any, refs ...ref) error {
	if err := validation.Struct(in); err != nil {
		return E(KindValidation, op, err)
	}
	if !c.CheckReferences {
		return nil
	}
	return requireRefs(ctx, c.Repo, op, refs...)
}

func requireRefs(ctx context.Context, repo *Repo, op string, refs ...ref) error {
	for _, r := range refs {
		ok, err := repo.Exists(ctx, r.collection, r.id)
		if err != nil {
			return err
		}
		if !ok {
			return E(KindNotFound, op, fmt.Errorf("%s %q does not exist", r.collection, r.id))
		}
	}
	return nil
}
