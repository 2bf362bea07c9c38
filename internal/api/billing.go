package api

import (
	"net/http"
	"net/url"

	"github.com/blankpage/blankpage/internal/config"
	"github.com/go-chi/chi/v5"
)

// BillingHandler redirects to externally hosted payment pages. Checkout,
// webhooks, and subscription state live entirely with the payment
// provider; this handler only constructs the links.
type BillingHandler struct {
	cfg config.BillingConfig
	// siteURL anchors the post-checkout redirect.
	siteURL string
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(cfg config.BillingConfig, siteURL string) *BillingHandler {
	return &BillingHandler{cfg: cfg, siteURL: siteURL}
}

// RegisterRoutes registers billing routes.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/billing/checkout", h.Checkout)
	r.Get("/api/billing/portal", h.Portal)
}

// Checkout redirects to the payment link with a return redirect back to
// the page.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PaymentLinkURL == "" {
		Error(w, http.StatusNotFound, "Nothing is for sale right now.")
		return
	}

	target, err := url.Parse(h.cfg.PaymentLinkURL)
	if err != nil {
		Error(w, http.StatusInternalServerError, "invalid payment link")
		return
	}
	q := target.Query()
	q.Set("redirect", h.siteURL+"/page")
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}

// Portal redirects to the customer portal.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PortalURL == "" {
		Error(w, http.StatusNotFound, "No subscription to manage.")
		return
	}
	http.Redirect(w, r, h.cfg.PortalURL, http.StatusTemporaryRedirect)
}
