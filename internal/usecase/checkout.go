package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
	"github.com/javieralejandro89/beztshop-checkout/internal/logging"
)

var (
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrAddressIncomplete   = errors.New("address step incomplete")
	ErrShippingNotReady    = errors.New("shipping method missing or totals not ready")
	ErrStockUnacknowledged = errors.New("stock findings require acknowledgment")
	ErrPaymentTerminal     = errors.New("payment step is only left via payment outcome")
	ErrNotAtPayment        = errors.New("not at payment step")
)

// itemStatus tracks per-product mutation state for optimistic UI.
type itemStatus int8

const (
	itemIdle itemStatus = iota
	itemPending
	itemDone
)

func (s itemStatus) String() string {
	switch s {
	case itemPending:
		return "pending"
	case itemDone:
		return "done"
	}
	return "idle"
}

// session is one shopper's in-progress checkout. Held only in memory:
// a reload restarts checkout, since server-side stock and prices drift.
type session struct {
	mu sync.Mutex

	id     string
	userID string
	status domain.SessionStatus
	cart   *CartStore
	draft  domain.CheckoutDraft

	totals   *domain.OrderTotals
	findings []domain.StockFinding

	// notices accumulates out-of-band messages (payment failed, cart
	// emptied); computeNotices belongs to the latest recomputation and
	// is replaced wholesale with it.
	notices        []string
	computeNotices []string

	// seq is the highest recompute issued, appliedSeq the highest one
	// whose result landed. A result is applied only when its number is
	// still the max issued; older in-flight responses are discarded.
	seq        uint64
	appliedSeq uint64
	computeErr error

	itemStates map[string]itemStatus

	paymentKey string
	orderID    string

	lastActive time.Time
}

func (s *session) totalsReady() bool {
	return s.totals != nil && s.appliedSeq == s.seq && s.computeErr == nil
}

// SessionView is the read model handed to the HTTP surface. Everything
// in it is a copy; handlers never touch live session state.
type SessionView struct {
	ID            string                `json:"id"`
	Status        domain.SessionStatus  `json:"status"`
	Step          domain.Step           `json:"step"`
	StepName      string                `json:"stepName"`
	Lines         []domain.CartLine     `json:"lines"`
	Totals        *domain.OrderTotals   `json:"totals,omitempty"`
	TotalsPending bool                  `json:"totalsPending"`
	Findings      []domain.StockFinding `json:"stockFindings,omitempty"`
	Notices       []string              `json:"notices,omitempty"`
	ItemStates    map[string]string     `json:"itemStates,omitempty"`
	OrderID       string                `json:"orderId,omitempty"`
}

// Engine owns every live checkout session and walks each one through
// Address, Shipping, Review and Payment.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session
	byOrder  map[string]string // orderID -> sessionID

	stock   *StockReconciler
	coupons *CouponEvaluator
	calc    *TotalsCalculator
	payment *PaymentHandoff
	events  EventPublisher

	policy CheckoutPolicy
	ttl    time.Duration
	log    *slog.Logger
}

func NewEngine(stock *StockReconciler, coupons *CouponEvaluator, calc *TotalsCalculator, payment *PaymentHandoff, events EventPublisher, policy CheckoutPolicy, sessionTTL time.Duration) *Engine {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &Engine{
		sessions: make(map[string]*session),
		byOrder:  make(map[string]string),
		stock:    stock,
		coupons:  coupons,
		calc:     calc,
		payment:  payment,
		events:   events,
		policy:   policy,
		ttl:      sessionTTL,
		log:      logging.New("checkout-engine"),
	}
}

// Start opens a session over a read-only snapshot of the cart.
func (e *Engine) Start(ctx context.Context, userID string, lines []domain.CartLine) (SessionView, error) {
	if len(lines) == 0 {
		return SessionView{}, ErrCartEmpty
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return SessionView{}, domain.ErrInvalidQuantity
		}
	}
	s := &session{
		id:         uuid.NewString(),
		userID:     userID,
		status:     domain.SessionActive,
		cart:       NewCartStore(lines),
		draft:      domain.CheckoutDraft{Step: domain.StepAddress},
		itemStates: make(map[string]itemStatus),
		lastActive: time.Now(),
	}
	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.log.Info("checkout started", "session_id", s.id, "user_id", userID, "lines", len(lines))
	return e.view(s), nil
}

func (e *Engine) Get(sessionID, userID string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	return e.view(s), nil
}

// SetAddress records either a saved-address reference or a new-address
// form; the two are mutually exclusive.
func (e *Engine) SetAddress(sessionID, userID, addressID string, form *domain.Address) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	if addressID != "" {
		s.draft.AddressID = addressID
		s.draft.NewAddress = nil
	} else {
		s.draft.AddressID = ""
		s.draft.NewAddress = form
	}
	s.lastActive = time.Now()
	s.mu.Unlock()
	return e.view(s), nil
}

func (e *Engine) SetCustomerNotes(sessionID, userID, notes string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	s.draft.CustomerNotes = notes
	s.lastActive = time.Now()
	s.mu.Unlock()
	return e.view(s), nil
}

// SetShippingMethod changes the method and recomputes. Superseded
// recomputations resolve late and get discarded, so a rapid toggle
// always lands on the last choice.
func (e *Engine) SetShippingMethod(ctx context.Context, sessionID, userID string, m domain.ShippingMethod) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	s.draft.ShippingMethod = &m
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err := e.recompute(ctx, s); err != nil {
		return e.view(s), err
	}
	return e.view(s), nil
}

// ApplyCoupon validates the code at the current subtotal and recomputes.
func (e *Engine) ApplyCoupon(ctx context.Context, sessionID, userID, code string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	subtotal := subtotalOf(s.cart.Snapshot())
	coupon, err := e.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		return e.view(s), err
	}
	s.mu.Lock()
	s.draft.Coupon = coupon
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err := e.recompute(ctx, s); err != nil {
		return e.view(s), err
	}
	return e.view(s), nil
}

func (e *Engine) RemoveCoupon(ctx context.Context, sessionID, userID string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	s.draft.Coupon = nil
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err := e.recompute(ctx, s); err != nil {
		return e.view(s), err
	}
	return e.view(s), nil
}

// SetQuantity edits one line (0 removes it) through the same mutation
// entry point stock remediation uses, then recomputes.
func (e *Engine) SetQuantity(ctx context.Context, sessionID, userID, productID string, quantity int) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	if quantity < 0 {
		return e.view(s), domain.ErrInvalidQuantity
	}
	s.mu.Lock()
	s.itemStates[productID] = itemPending
	s.lastActive = time.Now()
	s.mu.Unlock()

	s.cart.Apply(CartMutation{ProductID: productID, Quantity: quantity})

	rerr := e.recompute(ctx, s)

	s.mu.Lock()
	s.itemStates[productID] = itemDone
	s.mu.Unlock()
	if rerr != nil {
		return e.view(s), rerr
	}
	return e.view(s), nil
}

// Advance moves one step forward if the current step's guard holds.
func (e *Engine) Advance(ctx context.Context, sessionID, userID string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}

	s.mu.Lock()
	step := s.draft.Step
	s.lastActive = time.Now()
	s.mu.Unlock()

	switch step {
	case domain.StepAddress:
		s.mu.Lock()
		ok := s.draft.HasAddress()
		if ok {
			s.draft.Step = domain.StepShipping
		}
		s.mu.Unlock()
		if !ok {
			return e.view(s), ErrAddressIncomplete
		}
		// Entering Shipping always recomputes.
		if err := e.recompute(ctx, s); err != nil {
			return e.view(s), err
		}
		return e.view(s), nil

	case domain.StepShipping:
		s.mu.Lock()
		ok := s.draft.ShippingMethod != nil && s.totalsReady()
		if ok {
			s.draft.Step = domain.StepReview
		}
		s.mu.Unlock()
		if !ok {
			return e.view(s), ErrShippingNotReady
		}
		return e.view(s), nil

	case domain.StepReview:
		return e.advanceFromReview(ctx, s)

	default:
		return e.view(s), ErrPaymentTerminal
	}
}

// advanceFromReview runs the final stock verification. Findings refuse
// the transition and raise the remediation prompt instead.
func (e *Engine) advanceFromReview(ctx context.Context, s *session) (SessionView, error) {
	s.mu.Lock()
	ready := s.totalsReady()
	s.mu.Unlock()
	// Stale or failed totals never reach the payment step; a successful
	// recomputation has to land first.
	if !ready {
		return e.view(s), ErrShippingNotReady
	}

	findings, err := e.stock.Verify(ctx, s.cart.Snapshot())
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return e.view(s), err
		}
		// Stock unknown: proceed optimistically, surface for logging.
		e.log.Warn("final stock verify failed, proceeding", "session_id", s.id, "err", err)
		s.mu.Lock()
		s.notices = append(s.notices, "stock availability could not be confirmed")
		s.draft.Step = domain.StepPayment
		s.mu.Unlock()
		return e.view(s), nil
	}
	if len(findings) > 0 {
		s.mu.Lock()
		s.findings = findings
		s.mu.Unlock()
		return e.view(s), ErrStockUnacknowledged
	}
	s.mu.Lock()
	s.findings = nil
	s.draft.Step = domain.StepPayment
	s.mu.Unlock()
	return e.view(s), nil
}

// Back moves one step backward without re-validating forward guards.
// Payment is terminal; it is only left via the payment outcome.
func (e *Engine) Back(sessionID, userID string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.draft.Step {
	case domain.StepAddress:
		// already at the first step; no-op
	case domain.StepPayment:
		return e.viewLocked(s), ErrPaymentTerminal
	default:
		s.draft.Step--
	}
	s.lastActive = time.Now()
	return e.viewLocked(s), nil
}

// AcknowledgeRemediation applies the pending findings (remove or clamp)
// and recomputes from the remediated cart. Never applied silently; this
// only runs on the shopper's explicit accept.
func (e *Engine) AcknowledgeRemediation(ctx context.Context, sessionID, userID string) (SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	findings := s.findings
	s.findings = nil
	s.lastActive = time.Now()
	s.mu.Unlock()

	if len(findings) > 0 {
		e.stock.ApplyRemediation(s.cart, findings)
	}
	if s.cart.Empty() {
		s.mu.Lock()
		s.draft.Step = domain.StepAddress
		s.notices = append(s.notices, "all items became unavailable")
		s.mu.Unlock()
		return e.view(s), ErrCartEmpty
	}
	if err := e.recompute(ctx, s); err != nil {
		return e.view(s), err
	}
	return e.view(s), nil
}

// SubmitPayment hands the finalized draft and totals to the payment
// boundary. On failure the step, draft and totals stay untouched so the
// shopper can retry without losing anything.
func (e *Engine) SubmitPayment(ctx context.Context, sessionID, userID, idemKey string) (domain.PaymentOutcome, SessionView, error) {
	s, err := e.lookup(sessionID, userID)
	if err != nil {
		return domain.PaymentOutcome{}, SessionView{}, err
	}

	s.mu.Lock()
	if s.draft.Step != domain.StepPayment {
		s.mu.Unlock()
		return domain.PaymentOutcome{}, e.view(s), ErrNotAtPayment
	}
	if len(s.findings) > 0 {
		s.mu.Unlock()
		return domain.PaymentOutcome{}, e.view(s), ErrStockUnacknowledged
	}
	if !s.totalsReady() {
		s.mu.Unlock()
		return domain.PaymentOutcome{}, e.view(s), ErrShippingNotReady
	}
	if idemKey == "" {
		if s.paymentKey == "" {
			s.paymentKey = uuid.NewString()
		}
		idemKey = s.paymentKey
	} else {
		s.paymentKey = idemKey
	}
	in := SubmitInput{
		SessionID:      s.id,
		UserID:         s.userID,
		IdempotencyKey: idemKey,
		Lines:          s.cart.Snapshot(),
		Draft:          s.draft,
		Totals:         *s.totals,
	}
	s.mu.Unlock()

	outcome, err := e.payment.Submit(ctx, in)
	if err != nil {
		paymentOutcomesTotal.WithLabelValues("failure").Inc()
		s.mu.Lock()
		s.notices = append(s.notices, "payment failed, you can retry")
		s.mu.Unlock()
		return domain.PaymentOutcome{Reason: err.Error()}, e.view(s), err
	}

	if outcome.Pending {
		paymentOutcomesTotal.WithLabelValues("pending").Inc()
		s.mu.Lock()
		s.status = domain.SessionPaymentPending
		s.orderID = outcome.OrderID
		s.mu.Unlock()
		e.mu.Lock()
		e.byOrder[outcome.OrderID] = s.id
		e.mu.Unlock()
		return outcome, e.view(s), nil
	}

	paymentOutcomesTotal.WithLabelValues("success").Inc()
	view := e.complete(ctx, s, outcome)
	return outcome, view, nil
}

// ResolvePayment is called from the order-status event stream once the
// collector settles a pending order.
func (e *Engine) ResolvePayment(ctx context.Context, orderID string, success bool, orderNumber string) error {
	e.mu.Lock()
	sessionID, ok := e.byOrder[orderID]
	if ok {
		delete(e.byOrder, orderID)
	}
	e.mu.Unlock()
	if !ok {
		return nil // not ours, or session already gone
	}
	e.mu.Lock()
	s := e.sessions[sessionID]
	e.mu.Unlock()
	if s == nil {
		return nil
	}

	if success {
		paymentOutcomesTotal.WithLabelValues("success").Inc()
		e.complete(ctx, s, domain.PaymentOutcome{Success: true, OrderID: orderID, OrderNumber: orderNumber})
		return nil
	}

	paymentOutcomesTotal.WithLabelValues("failure").Inc()
	s.mu.Lock()
	s.status = domain.SessionActive
	s.orderID = ""
	key := s.paymentKey
	// A failed order cannot be resubmitted under the old key; the next
	// attempt gets a fresh one and creates a new order.
	s.paymentKey = ""
	s.notices = append(s.notices, "payment failed, you can retry")
	s.mu.Unlock()
	if key != "" {
		e.payment.ReleaseKey(ctx, sessionID, key)
	}
	return nil
}

// complete clears the cart, publishes the event and tears the session
// down. Completed checkouts do not reset to step 1; they disappear.
func (e *Engine) complete(ctx context.Context, s *session, outcome domain.PaymentOutcome) SessionView {
	s.mu.Lock()
	s.status = domain.SessionCompleted
	s.orderID = outcome.OrderID
	couponCode := ""
	if s.draft.Coupon != nil {
		couponCode = s.draft.Coupon.Code
	}
	var total int64
	if s.totals != nil {
		total = s.totals.TotalCents
	}
	s.mu.Unlock()

	s.cart.Clear()

	if e.events != nil {
		msg := CheckoutCompletedMsg{
			SessionID:   s.id,
			OrderID:     outcome.OrderID,
			OrderNumber: outcome.OrderNumber,
			UserID:      s.userID,
			TotalCents:  total,
			Currency:    e.policy.Currency,
			CouponCode:  couponCode,
		}
		if err := e.events.PublishCompleted(ctx, msg); err != nil {
			e.log.Error("publish checkout.completed failed", "session_id", s.id, "err", err)
		}
	}

	view := e.view(s)
	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()
	e.log.Info("checkout completed", "session_id", s.id, "order_id", outcome.OrderID)
	return view
}

// recompute issues a sequence-numbered totals computation. Only the
// result whose number is still the max issued is applied; a slow stale
// response cannot clobber a fresher total.
func (e *Engine) recompute(ctx context.Context, s *session) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	couponCode := ""
	if s.draft.Coupon != nil {
		couponCode = s.draft.Coupon.Code
	}
	method := s.draft.ShippingMethod
	s.mu.Unlock()

	lines := s.cart.Snapshot()
	var notices []string

	findings, verr := e.stock.Verify(ctx, lines)
	if verr != nil {
		if errors.Is(verr, domain.ErrSessionExpired) {
			e.failRecompute(s, seq, verr)
			return verr
		}
		// Stock unknown: optimistic, the server re-validates at order
		// creation.
		e.log.Warn("stock verify failed during recompute", "session_id", s.id, "err", verr)
		notices = append(notices, "stock availability could not be confirmed")
		findings = nil
	}

	var coupon *domain.Coupon
	couponDropped := false
	if couponCode != "" {
		c, err := e.coupons.Validate(ctx, couponCode, subtotalOf(lines))
		var cerr *domain.CouponError
		switch {
		case err == nil:
			coupon = c
		case errors.As(err, &cerr):
			// The coupon no longer qualifies; drop it and tell the
			// shopper rather than leaving it applied.
			couponDropped = true
			notices = append(notices, "coupon "+couponCode+" removed: "+string(cerr.Reason))
		default:
			e.failRecompute(s, seq, err)
			return err
		}
	}

	totals := e.calc.Compute(lines, coupon, method, findings)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		recomputesTotal.WithLabelValues("superseded").Inc()
		return nil
	}
	s.appliedSeq = seq
	s.computeErr = nil
	s.totals = &totals
	s.findings = findings
	s.computeNotices = notices
	if couponDropped {
		couponDropsTotal.Inc()
		s.draft.Coupon = nil
	} else if coupon != nil {
		s.draft.Coupon = coupon
	}
	recomputesTotal.WithLabelValues("applied").Inc()
	return nil
}

// failRecompute records a failed computation. The previous valid totals
// stay on display; advancement is blocked until a recompute succeeds.
func (e *Engine) failRecompute(s *session, seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		recomputesTotal.WithLabelValues("superseded").Inc()
		return
	}
	s.appliedSeq = seq
	s.computeErr = err
	s.computeNotices = []string{"totals could not be updated"}
	recomputesTotal.WithLabelValues("failed").Inc()
}

func (e *Engine) lookup(sessionID, userID string) (*session, error) {
	e.mu.Lock()
	s := e.sessions[sessionID]
	e.mu.Unlock()
	if s == nil || s.userID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (e *Engine) view(s *session) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.viewLocked(s)
}

func (e *Engine) viewLocked(s *session) SessionView {
	v := SessionView{
		ID:            s.id,
		Status:        s.status,
		Step:          s.draft.Step,
		StepName:      s.draft.Step.String(),
		Lines:         s.cart.Snapshot(),
		TotalsPending: s.appliedSeq != s.seq,
		OrderID:       s.orderID,
	}
	if s.totals != nil {
		t := *s.totals
		v.Totals = &t
	}
	if len(s.findings) > 0 {
		v.Findings = append([]domain.StockFinding(nil), s.findings...)
	}
	if n := len(s.notices) + len(s.computeNotices); n > 0 {
		v.Notices = make([]string, 0, n)
		v.Notices = append(v.Notices, s.notices...)
		v.Notices = append(v.Notices, s.computeNotices...)
	}
	if len(s.itemStates) > 0 {
		v.ItemStates = make(map[string]string, len(s.itemStates))
		for id, st := range s.itemStates {
			v.ItemStates[id] = st.String()
		}
	}
	return v
}

// StartSweeper prunes idle sessions until ctx is done.
func (e *Engine) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				e.sweep(time.Now())
			}
		}
	}()
}

func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActive) > e.ttl
		orderID := s.orderID
		s.mu.Unlock()
		if idle {
			delete(e.sessions, id)
			if orderID != "" {
				delete(e.byOrder, orderID)
			}
		}
	}
}

func subtotalOf(lines []domain.CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotalCents()
	}
	return sum
}
