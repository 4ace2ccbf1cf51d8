package domain

import "errors"

// Step is the checkout position. Transitions are linear and only happen
// through the engine's Advance/Back, never by direct assignment.
type Step int

const (
	StepAddress Step = iota + 1
	StepShipping
	StepReview
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepAddress:
		return "ADDRESS"
	case StepShipping:
		return "SHIPPING"
	case StepReview:
		return "REVIEW"
	case StepPayment:
		return "PAYMENT"
	}
	return "UNKNOWN"
}

// Address is a fully-specified new shipping address.
type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (a Address) Complete() bool {
	return a.Name != "" && a.Street != "" && a.City != "" && a.State != "" && a.ZipCode != ""
}

type ShippingMethod struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FlatCents int64  `json:"flatCents"`
}

// CheckoutDraft is the in-progress order. AddressID and NewAddress are
// mutually exclusive: a shopper either picks a saved address or fills
// the form.
type CheckoutDraft struct {
	Step           Step
	AddressID      string
	NewAddress     *Address
	ShippingMethod *ShippingMethod
	Coupon         *Coupon
	CustomerNotes  string
}

func (d CheckoutDraft) HasAddress() bool {
	if d.AddressID != "" {
		return true
	}
	return d.NewAddress != nil && d.NewAddress.Complete()
}

type SessionStatus string

const (
	SessionActive         SessionStatus = "ACTIVE"
	SessionPaymentPending SessionStatus = "PAYMENT_PENDING"
	SessionCompleted      SessionStatus = "COMPLETED"
)

func (s SessionStatus) Terminal() bool { return s == SessionCompleted }

// PaymentOutcome is what the payment boundary reports back.
type PaymentOutcome struct {
	Success     bool   `json:"success"`
	Pending     bool   `json:"pending,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

var ErrSessionExpired = errors.New("session expired, re-authentication required")
