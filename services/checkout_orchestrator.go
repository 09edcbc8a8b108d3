package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/currency"
	"checkout-service/events"
	"checkout-service/logger"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/repository"
	"checkout-service/saga"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Commit step names.
const (
	StepCreateOrder    = "create_order"
	StepLinkOrder      = "link_order_to_user"
	StepCreateShipment = "create_shipment"
	StepClearCart      = "clear_cart"

	// FailureInterrupted marks a session whose commit stopped before it settled.
	FailureInterrupted = "interrupted"
)

// FeeResolver computes a shipping fee in minor units.
type FeeResolver interface {
	Fee(addr models.ShippingAddress) int64
}

// CheckoutOrchestrator drives a checkout from entry to a placed order.
type CheckoutOrchestrator interface {
	Begin(ctx context.Context, userID string) (*models.CheckoutSession, error)
	Get(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error)
	Submit(ctx context.Context, userID, sessionID string, method models.PaymentMethod) (*models.CheckoutSession, error)
	ApproveExternalPayment(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error)
	CancelExternalPayment(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error)
}

// CheckoutDeps wires a CheckoutOrchestrator.
type CheckoutDeps struct {
	Cart      CartAggregator
	Addresses AddressResolver
	Fees      FeeResolver

	CartAPI   clients.CartAPI
	Users     clients.UserAPI
	Orders    clients.OrderAPI
	Shipments clients.ShipmentAPI

	Sessions repository.SessionRepository
	Saga     *saga.Runner
	Events   events.Publisher
	Metrics  aws_pkg.MetricsRecorder
	Logger   *zap.Logger

	CartClearAttempts int
	CartClearBackoff  time.Duration
	CommitTimeout     time.Duration
	Now               func() time.Time
}

type checkoutOrchestratorImpl struct {
	CheckoutDeps
}

func NewCheckoutOrchestrator(deps CheckoutDeps) CheckoutOrchestrator {
	if deps.CartClearAttempts < 1 {
		deps.CartClearAttempts = 3
	}
	if deps.CartClearBackoff <= 0 {
		deps.CartClearBackoff = 200 * time.Millisecond
	}
	if deps.CommitTimeout <= 0 {
		deps.CommitTimeout = 30 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = aws_pkg.NopMetrics{}
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{Logger: deps.Logger}
	}
	return &checkoutOrchestratorImpl{CheckoutDeps: deps}
}

// Begin loads the cart and the effective address in parallel and opens a session.
func (s *checkoutOrchestratorImpl) Begin(ctx context.Context, userID string) (*models.CheckoutSession, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	log := logger.For(ctx, s.Logger)

	var (
		report *models.CartReport
		addr   *models.ShippingAddress
		source string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = s.Cart.LoadCart(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		addr, source, err = s.Addresses.Resolve(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if source == models.AddressSourceSelection {
			s.Addresses.Restore(context.WithoutCancel(ctx), userID, addr)
		}
		log.Warn("Checkout entry failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	now := s.Now().UTC()
	session := &models.CheckoutSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		State:         models.CheckoutIdle,
		Lines:         report.Lines,
		Unresolved:    report.Unresolved,
		Address:       addr,
		AddressSource: source,
		Subtotal:      report.Subtotal(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if addr != nil {
		session.ShippingFee = s.Fees.Fee(*addr)
	}
	session.Total = session.Subtotal + session.ShippingFee

	if err := s.Sessions.Save(ctx, session); err != nil {
		if source == models.AddressSourceSelection {
			s.Addresses.Restore(context.WithoutCancel(ctx), userID, addr)
		}
		return nil, apperrors.Internal("failed to start checkout", err)
	}

	s.recordCount(ctx, aws_pkg.MetricCheckoutsStarted, nil)
	if len(report.Unresolved) > 0 {
		s.recordCount(ctx, aws_pkg.MetricCartLinesUnresolved, nil)
	}
	log.Info("Checkout started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.Int("lines", len(session.Lines)),
		zap.Int("unresolved", len(session.Unresolved)),
		zap.String("address_source", source),
	)
	return session, nil
}

func (s *checkoutOrchestratorImpl) Get(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	return s.load(ctx, userID, sessionID)
}

// Submit checks preconditions in order and either commits (cod) or parks the
// session until the external payment is approved (paypal). A failed
// precondition performs no writes of any kind.
func (s *checkoutOrchestratorImpl) Submit(ctx context.Context, userID, sessionID string, method models.PaymentMethod) (*models.CheckoutSession, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	if !method.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported payment method %q", method))
	}

	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case models.CheckoutSucceeded:
		return session, nil
	case models.CheckoutSubmitting:
		if err := s.recoverInterrupted(ctx, session); err != nil {
			return nil, err
		}
	case models.CheckoutPendingExternalPayment:
		return nil, apperrors.Conflict("waiting for payment approval")
	}

	if err := checkPreconditions(session); err != nil {
		return nil, err
	}

	session.PaymentMethod = method
	if method.RequiresExternalApproval() {
		session.State = models.CheckoutPendingExternalPayment
		session.FailureReason = ""
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	return s.commit(ctx, session)
}

func (s *checkoutOrchestratorImpl) ApproveExternalPayment(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case models.CheckoutSucceeded:
		return session, nil
	case models.CheckoutPendingExternalPayment:
	case models.CheckoutSubmitting:
		// An approved payment whose commit was cut short is committed again.
		if err := s.recoverInterrupted(ctx, session); err != nil {
			return nil, err
		}
		if !session.PaymentMethod.RequiresExternalApproval() {
			return nil, apperrors.Conflict("no payment is awaiting approval")
		}
	default:
		return nil, apperrors.Conflict("no payment is awaiting approval")
	}

	if err := checkPreconditions(session); err != nil {
		return nil, err
	}
	return s.commit(ctx, session)
}

// CancelExternalPayment returns a pending session to idle so another method can be chosen.
func (s *checkoutOrchestratorImpl) CancelExternalPayment(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case models.CheckoutIdle:
		return session, nil
	case models.CheckoutPendingExternalPayment:
	default:
		return nil, apperrors.Conflict("no payment is awaiting approval")
	}

	session.State = models.CheckoutIdle
	session.PaymentMethod = ""
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func checkPreconditions(session *models.CheckoutSession) error {
	if len(session.Lines) == 0 {
		return apperrors.EmptyCart()
	}
	if session.Address == nil {
		return apperrors.MissingAddress()
	}
	return nil
}

// commit places the order. It runs detached from the caller's cancellation so a
// dropped connection cannot stop the saga between two remote writes.
func (s *checkoutOrchestratorImpl) commit(reqCtx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), s.CommitTimeout)
	defer cancel()
	log := logger.For(ctx, s.Logger)
	start := time.Now()

	now := s.Now().UTC()
	addr := *session.Address
	fee := s.Fees.Fee(addr)
	subtotal := subtotalOf(session.Lines)
	orderID := newCode("ORD", now)
	shipmentCode := newCode("SHP", now)
	commitID := uuid.NewString()
	status := models.InitialOrderStatus(session.PaymentMethod)

	// The ids are saved before any remote write so a later caller can undo them.
	session.State = models.CheckoutSubmitting
	session.FailureReason = ""
	session.Commit = &models.PendingCommit{CommitID: commitID, OrderID: orderID, ShipmentCode: shipmentCode, StartedAt: now}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            orderID,
		OrderID:       orderID,
		UserID:        session.UserID,
		OrderDate:     now,
		Items:         orderItems(session.Lines),
		TotalAmount:   currency.ToMajor(subtotal),
		ShippingFee:   currency.ToMajor(fee),
		PaymentMethod: string(session.PaymentMethod),
		Status:        status,
	}
	shipment := &models.Shipment{
		ID:           shipmentCode,
		ShipmentCode: shipmentCode,
		OrderID:      orderID,
		UserID:       session.UserID,
		Address:      addr,
		ShippingFee:  fee,
		Status:       models.ShipmentStatusProcessing,
		CreatedAt:    now,
	}

	undo := s.compensations(session.UserID, session.Commit)
	steps := []saga.Step{
		{
			Name:       StepCreateOrder,
			Action:     func(ctx context.Context) error { return s.Orders.CreateOrder(ctx, order) },
			Compensate: undo[0].Compensate,
		},
		{
			Name:       StepLinkOrder,
			Action:     func(ctx context.Context) error { return s.linkOrder(ctx, session.UserID, orderID) },
			Compensate: undo[1].Compensate,
		},
		{
			Name:       StepCreateShipment,
			Action:     func(ctx context.Context) error { return s.Shipments.CreateShipment(ctx, shipment) },
			Compensate: undo[2].Compensate,
		},
		{
			Name:       StepClearCart,
			Action:     func(ctx context.Context) error { return s.clearCart(ctx, session) },
			Attempts:   s.CartClearAttempts,
			Backoff:    s.CartClearBackoff,
			BestEffort: true,
		},
	}

	meta := models.CommitStep{CommitID: commitID, SessionID: session.ID, UserID: session.UserID}
	result, err := s.Saga.Run(ctx, meta, steps)
	if err != nil {
		return nil, s.fail(ctx, session, err)
	}

	_, cartErr := result.Incomplete[StepClearCart]
	session.ShippingFee = fee
	session.Subtotal = subtotal
	session.Total = subtotal + fee
	session.State = models.CheckoutSucceeded
	session.Commit = nil
	session.Receipt = &models.Receipt{
		CommitID:     commitID,
		OrderID:      orderID,
		ShipmentCode: shipmentCode,
		Lines:        session.Lines,
		Address:      addr,
		Subtotal:     subtotal,
		ShippingFee:  fee,
		Total:        subtotal + fee,
		Status:       status,
		CartCleared:  !cartErr,
		PlacedAt:     now,
	}
	if err := s.save(ctx, session); err != nil {
		// The order exists; the receipt is still returned to this caller.
		log.Error("Failed to persist receipt", zap.String("session_id", session.ID), zap.String("order_id", orderID), zap.Error(err))
	}

	dims := map[string]string{"PaymentMethod": string(session.PaymentMethod)}
	s.recordCount(ctx, aws_pkg.MetricCheckoutsSucceeded, dims)
	if err := s.Metrics.RecordLatency(ctx, aws_pkg.MetricCheckoutLatency, time.Since(start), dims); err != nil {
		log.Warn("Failed to record metric", zap.String("metric", aws_pkg.MetricCheckoutLatency), zap.Error(err))
	}
	if cartErr {
		s.recordCount(ctx, aws_pkg.MetricCartClearIncomplete, nil)
	}

	s.publishOrderPlaced(ctx, session)
	log.Info("Order placed",
		zap.String("session_id", session.ID),
		zap.String("order_id", orderID),
		zap.String("shipment_code", shipmentCode),
		zap.String("payment_method", string(session.PaymentMethod)),
		zap.Int64("total", session.Total),
		zap.Bool("cart_cleared", !cartErr),
	)
	return session, nil
}

func (s *checkoutOrchestratorImpl) fail(ctx context.Context, session *models.CheckoutSession, err error) error {
	log := logger.For(ctx, s.Logger)

	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		stepErr = &saga.StepError{Step: "unknown", Err: err}
	}

	session.State = models.CheckoutFailed
	session.FailureReason = stepErr.Step
	session.Commit = nil
	if serr := s.save(ctx, session); serr != nil {
		log.Error("Failed to persist failed session", zap.String("session_id", session.ID), zap.Error(serr))
	}

	s.recordCount(ctx, aws_pkg.MetricCheckoutsFailed, map[string]string{"Step": stepErr.Step})
	if len(stepErr.Compensated) > 0 {
		s.recordCount(ctx, aws_pkg.MetricCompensationsApplied, map[string]string{"Step": stepErr.Step})
	}
	fields := []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("step", stepErr.Step),
		zap.Strings("compensated", stepErr.Compensated),
		zap.Error(stepErr.Err),
	}
	if stepErr.CompensationError != nil {
		fields = append(fields, zap.NamedError("compensation_error", stepErr.CompensationError))
	}
	log.Error("Checkout commit failed", fields...)

	return apperrors.CommitStepFailure(stepErr.Step, stepErr)
}

// compensations undo the remote writes of one commit, in forward order.
func (s *checkoutOrchestratorImpl) compensations(userID string, pc *models.PendingCommit) []saga.Step {
	return []saga.Step{
		{Name: StepCreateOrder, Compensate: func(ctx context.Context) error { return s.Orders.DeleteOrder(ctx, pc.OrderID) }},
		{Name: StepLinkOrder, Compensate: func(ctx context.Context) error { return s.unlinkOrder(ctx, userID, pc.OrderID) }},
		{Name: StepCreateShipment, Compensate: func(ctx context.Context) error { return s.Shipments.DeleteShipment(ctx, pc.ShipmentCode) }},
	}
}

// recoverInterrupted handles a session found in Submitting by a caller that
// holds the lock. Once the commit timeout has passed, the commit that saved it
// is gone: its writes are undone and the session is marked failed so it can be
// submitted again. Before that, the commit may still be running.
func (s *checkoutOrchestratorImpl) recoverInterrupted(ctx context.Context, session *models.CheckoutSession) error {
	started := session.UpdatedAt
	if session.Commit != nil {
		started = session.Commit.StartedAt
	}
	if s.Now().Sub(started) < s.CommitTimeout {
		return apperrors.Conflict("this order is already being placed")
	}

	log := logger.For(ctx, s.Logger)
	if pc := session.Commit; pc != nil {
		meta := models.CommitStep{CommitID: pc.CommitID, SessionID: session.ID, UserID: session.UserID}
		undone, err := s.Saga.Undo(meta, s.compensations(session.UserID, pc))
		if err != nil {
			log.Error("Failed to undo interrupted commit",
				zap.String("session_id", session.ID), zap.String("commit_id", pc.CommitID), zap.Error(err))
			return apperrors.CommitStepFailure(FailureInterrupted, err)
		}
		log.Warn("Undid interrupted commit",
			zap.String("session_id", session.ID),
			zap.String("commit_id", pc.CommitID),
			zap.Strings("compensated", undone),
		)
	}

	session.State = models.CheckoutFailed
	session.FailureReason = FailureInterrupted
	session.Commit = nil
	if err := s.save(ctx, session); err != nil {
		return err
	}
	s.recordCount(ctx, aws_pkg.MetricCheckoutsFailed, map[string]string{"Step": FailureInterrupted})
	return nil
}

// linkOrder re-reads the user so a concurrent write to the order list is not lost.
func (s *checkoutOrchestratorImpl) linkOrder(ctx context.Context, userID, orderID string) error {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if slices.Contains(user.OrderIDs, orderID) {
		return nil
	}
	ids := append(slices.Clone(user.OrderIDs), orderID)
	return s.Users.SetUserOrders(ctx, userID, ids)
}

func (s *checkoutOrchestratorImpl) unlinkOrder(ctx context.Context, userID, orderID string) error {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return nil
		}
		return err
	}
	if !slices.Contains(user.OrderIDs, orderID) {
		return nil
	}
	ids := slices.DeleteFunc(slices.Clone(user.OrderIDs), func(id string) bool { return id == orderID })
	return s.Users.SetUserOrders(ctx, userID, ids)
}

// clearCart deletes the user's current cart entries. When the cart cannot be
// re-read, the entries captured at checkout entry are deleted instead.
func (s *checkoutOrchestratorImpl) clearCart(ctx context.Context, session *models.CheckoutSession) error {
	var ids []string
	entries, err := s.CartAPI.GetCart(ctx, session.UserID)
	if err != nil {
		logger.For(ctx, s.Logger).Warn("Cart re-read failed, clearing captured entries", zap.Error(err))
		for _, l := range session.Lines {
			if !slices.Contains(ids, l.CartEntryID) {
				ids = append(ids, l.CartEntryID)
			}
		}
	} else {
		for _, e := range entries {
			ids = append(ids, e.ID.String())
		}
	}

	var errs []error
	for _, id := range ids {
		if err := s.CartAPI.DeleteCartEntry(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *checkoutOrchestratorImpl) publishOrderPlaced(ctx context.Context, session *models.CheckoutSession) {
	r := session.Receipt
	event := models.OrderPlacedEvent{
		EventType:     events.EventOrderPlaced,
		CommitID:      r.CommitID,
		OrderID:       r.OrderID,
		UserID:        session.UserID,
		ShipmentCode:  r.ShipmentCode,
		PaymentMethod: string(session.PaymentMethod),
		Total:         r.Total,
		CartCleared:   r.CartCleared,
		Timestamp:     r.PlacedAt,
	}
	if err := s.Events.Publish(ctx, events.EventOrderPlaced, r.OrderID, event); err != nil {
		logger.For(ctx, s.Logger).Warn("Failed to publish order placed event", zap.String("order_id", r.OrderID), zap.Error(err))
	}
}

func (s *checkoutOrchestratorImpl) lock(ctx context.Context, sessionID string) (func(), error) {
	if sessionID == "" {
		return nil, apperrors.BadRequest("session id is required")
	}
	unlock, err := s.Sessions.Lock(ctx, sessionID, s.CommitTimeout+5*time.Second)
	if errors.Is(err, repository.ErrLocked) {
		return nil, apperrors.Conflict("this checkout is already being processed")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to lock checkout", err)
	}
	return unlock, nil
}

// load hides sessions owned by other users behind the same not-found error.
func (s *checkoutOrchestratorImpl) load(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, apperrors.NotFound("checkout session not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load checkout", err)
	}
	if session.UserID != userID {
		return nil, apperrors.NotFound("checkout session not found")
	}
	return session, nil
}

func (s *checkoutOrchestratorImpl) save(ctx context.Context, session *models.CheckoutSession) error {
	session.UpdatedAt = s.Now().UTC()
	if err := s.Sessions.Save(ctx, session); err != nil {
		return apperrors.Internal("failed to save checkout", err)
	}
	return nil
}

func (s *checkoutOrchestratorImpl) recordCount(ctx context.Context, metric string, dims map[string]string) {
	if err := s.Metrics.RecordCount(ctx, metric, dims); err != nil {
		logger.For(ctx, s.Logger).Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func subtotalOf(lines []models.CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

func orderItems(lines []models.CartLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			ProductID:   l.Product.ID.String(),
			ProductName: l.Product.Title,
			Quantity:    l.Quantity,
			Price:       currency.ToMajor(l.Product.Price),
		})
	}
	return items
}

// newCode builds ids such as ORD-20260115-1A2B3C4D.
func newCode(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
