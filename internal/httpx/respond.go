package httpx

import (
	"errors"
	"github.com/ariefcatur/go-ledger-orders/internal/auth"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/ariefcatur/go-ledger-orders/internal/orders"
	"github.com/ariefcatur/go-ledger-orders/internal/validation"
	"github.com/goccy/go-json"
	"math"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorDetail struct {
	Kind    string                  `json:"kind"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

type errorBody struct {
	Error       errorDetail         `json:"error"`
	OrderDetail *orders.OrderDetail `json:"order_detail,omitempty"`
}

// classify maps an error onto an HTTP status and a machine-readable kind.
func classify(err error) (int, string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, string(orders.KindValidation)
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized, "auth"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "auth"
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict, string(orders.KindConflict)
	}
	switch k := orders.KindOf(err); k {
	case orders.KindValidation:
		return http.StatusBadRequest, string(k)
	case orders.KindNotFound:
		return http.StatusNotFound, string(k)
	case orders.KindConflict:
		return http.StatusConflict, string(k)
	case orders.KindLedgerSubmission:
		return http.StatusBadGateway, string(k)
	case orders.KindLedgerTimeout:
		return http.StatusGatewayTimeout, string(k)
	default:
		return http.StatusInternalServerError, string(orders.KindStorage)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorWith(w, r, err, nil)
}

// writeErrorWith also carries the order detail for degraded outcomes, where the document
// was stored but its ledger mirror is not confirmed.
func writeErrorWith(w http.ResponseWriter, r *http.Request, err error, d *orders.OrderDetail) {
	code, kind := classify(err)
	body := errorBody{Error: errorDetail{Kind: kind, Message: publicMessage(code, err)}, OrderDetail: d}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		body.Error.Fields = verrs
	}
	ev := logging.Ctx(r.Context()).Warn()
	if code >= 500 {
		ev = logging.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", code).Str("kind", kind).Msg("request failed")
	writeJSON(w, code, body)
}

func publicMessage(code int, err error) string {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return "User does not exist"
	case errors.Is(err, auth.ErrBadCredentials):
		return "Login Failed"
	case code == http.StatusInternalServerError:
		return "storage unavailable"
	}
	return err.Error()
}

// created answers a successful form post: a redirect to the index for browsers,
// the created resource for API clients.
func created(w http.ResponseWriter, r *http.Request, v any) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, v)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// form reads typed form fields, collecting parse failures as validation errors.
type form struct {
	r    *http.Request
	errs validation.Errors
}

func newForm(r *http.Request) *form { return &form{r: r} }

func (f *form) str(name string) string {
	return strings.TrimSpace(f.r.PostFormValue(name))
}

// int and float read required numeric fields: an absent or blank value is a
// "required" failure, never a silent zero.
func (f *form) int(name string) int {
	v, ok := f.present(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.errs = append(f.errs, validation.FieldError{Field: name, Rule: "number"})
	}
	return n
}

func (f *form) float(name string) float64 {
	v, ok := f.present(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		f.errs = append(f.errs, validation.FieldError{Field: name, Rule: "number"})
	}
	return n
}

func (f *form) present(name string) (string, bool) {
	v := f.str(name)
	if v == "" {
		f.errs = append(f.errs, validation.FieldError{Field: name, Rule: "required"})
		return "", false
	}
	return v, true
}

func (f *form) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return f.errs
}
