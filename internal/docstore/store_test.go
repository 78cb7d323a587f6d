package docstore

import (
	"strings"
	"testing"
)

func TestEncodeFieldsSplitsServerTimestamps(t *testing.T) {
	doc, stamped, err := encodeFields(Fields{
		"order_id":   "O1",
		"quantity":   3,
		"order_date": ServerTimestamp,
		"created_at": ServerTimestamp,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(stamped) != 2 || stamped[0] != "created_at" || stamped[1] != "order_date" {
		t.Errorf("stamped = %v", stamped)
	}
	if strings.Contains(doc, "order_date") {
		t.Errorf("placeholder leaked into json: %s", doc)
	}
	if !strings.Contains(doc, `"order_id":"O1"`) {
		t.Errorf("json = %s", doc)
	}
}

func TestDataTo(t *testing.T) {
	d := Document{ID: "x", Fields: Fields{"name": "widget", "price": 2.5}}
	var p struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	if err := d.DataTo(&p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "widget" || p.Price != 2.5 {
		t.Errorf("got %+v", p)
	}
}
