package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/checkout"
)

// CheckoutController exposes the purchase wizard. The current step lives in
// the ?step= query of the session URL; every response carries that URL in
// its Location header.
type CheckoutController struct {
	wizard   *checkout.Wizard
	basePath string
}

// NewCheckoutController serves sessions under basePath, e.g. "/api/v1/checkout".
func NewCheckoutController(w *checkout.Wizard, basePath string) *CheckoutController {
	return &CheckoutController{wizard: w, basePath: basePath}
}

type startCheckoutRequest struct {
	CourseID string `json:"courseId"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

func (cc *CheckoutController) location(s checkout.Session) string {
	return checkout.Location(cc.basePath+"/"+s.ID, s.Step)
}

func (cc *CheckoutController) respond(c *gin.Context, status int, s checkout.Session) {
	c.Header("Location", cc.location(s))
	c.JSON(status, s)
}

// Start opens a session at Details.
func (cc *CheckoutController) Start(c *gin.Context) {
	var req startCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	s, err := cc.wizard.Start(c.Request.Context(), req.CourseID)
	if err != nil {
		respondError(c, err)
		return
	}
	cc.respond(c, http.StatusCreated, s)
}

// Get shows the step named in the URL. A missing, malformed or not yet
// reachable step redirects to the session's canonical URL.
func (cc *CheckoutController) Get(c *gin.Context) {
	id := c.Param("id")
	requested, ok, err := checkout.StepFromQuery(c.Request.URL.Query())
	if err != nil || !ok {
		s, err := cc.wizard.Get(id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, cc.location(s))
		return
	}

	s, err := cc.wizard.Resolve(id, requested)
	if err != nil {
		respondError(c, err)
		return
	}
	if s.Step != requested {
		c.Redirect(http.StatusSeeOther, cc.location(s))
		return
	}
	cc.respond(c, http.StatusOK, s)
}

// Details submits the guest form and moves to Payment.
func (cc *CheckoutController) Details(c *gin.Context) {
	var details checkout.GuestDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	s, err := cc.wizard.SubmitGuestDetails(c.Request.Context(), c.Param("id"), details)
	if err != nil {
		respondError(c, err)
		return
	}
	cc.respond(c, http.StatusOK, s)
}

// SignIn attaches the authenticated user and moves to Payment.
func (cc *CheckoutController) SignIn(c *gin.Context) {
	s, err := cc.wizard.SignIn(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	cc.respond(c, http.StatusOK, s)
}

// Confirm completes the checkout once the payment intent has succeeded.
func (cc *CheckoutController) Confirm(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	s, err := cc.wizard.ConfirmPayment(c.Request.Context(), c.Param("id"), req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}
	cc.respond(c, http.StatusOK, s)
}
