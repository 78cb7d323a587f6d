package orders

import (
	kafkax "github.com/ariefcatur/go-ledger-orders/internal/kafka"
	"testing"
	"time"
)

func TestStatusChangeEnvelope(t *testing.T) {
	in := StatusChange{OrderDetailID: "od1", OrderID: "O1", From: LedgerPending, To: LedgerConfirmed, TxHash: "0x1", At: time.Unix(100, 0).UTC()}
	b, err := encodeStatusChange(in, "order-api")
	if err != nil {
		t.Fatal(err)
	}

	var env Envelope
	if err := kafkax.UnmarshalEnvelope(b, &env); err != nil {
		t.Fatal(err)
	}
	if env.EventType != EventLedgerStatusChanged || env.Producer != "order-api" || env.CorrelationID != "od1" || env.EventID == "" {
		t.Errorf("envelope = %+v", env)
	}

	out, ok, err := decodeStatusChange(b)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if out.OrderDetailID != in.OrderDetailID || out.From != in.From || out.To != in.To || out.TxHash != in.TxHash || !out.At.Equal(in.At) {
		t.Errorf("decoded = %+v, want %+v", out, in)
	}
}

func TestDecodeStatusChangeSkipsOtherEvents(t *testing.T) {
	b := kafkax.MustMarshal(Envelope{EventID: "e", EventType: EventLedgerSubmitRequested, Payload: kafkax.MustMarshal(LedgerSubmitRequestedPayload{})})
	if _, ok, err := decodeStatusChange(b); ok || err != nil {
		t.Errorf("ok=%v err=%v, want skipped", ok, err)
	}
	if _, _, err := decodeStatusChange([]byte("{")); err == nil {
		t.Error("want an error for malformed input")
	}
}
