package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name     string  `form:"name" validate:"required"`
	Quantity int     `form:"quantity" validate:"gt=0"`
	Price    float64 `form:"price_each" validate:"gte=0"`
	Email    string  `form:"email" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sample{Name: "x", Quantity: 1}); err != nil {
		t.Fatalf("valid struct: %v", err)
	}

	err := Struct(sample{Quantity: 0, Price: -1, Email: "nope"})
	var verrs Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %T %v, want Errors", err, err)
	}
	fields := map[string]string{}
	for _, fe := range verrs {
		fields[fe.Field] = fe.Rule
	}
	want := map[string]string{"name": "required", "quantity": "gt", "price_each": "gte", "email": "email"}
	for f, rule := range want {
		if fields[f] != rule {
			t.Errorf("field %s rule = %q, want %q", f, fields[f], rule)
		}
	}
	if !strings.Contains(err.Error(), "quantity must be greater than 0") {
		t.Errorf("message = %q", err.Error())
	}
}
