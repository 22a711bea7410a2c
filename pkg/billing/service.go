package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/lifecycle"
	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/notify"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/refund"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Result is the outcome of an accepted change.
type Result struct {
	Decision lifecycle.Decision `json:"decision"`
	// Record is the stored subscription after the change; nil for checkouts.
	Record *subscription.Record `json:"record,omitempty"`
	// Checkout is set when the change needs the customer to pay first.
	Checkout *CheckoutLink `json:"checkout,omitempty"`
}

// Service orchestrates plan changes and refund requests.
type Service struct {
	catalog    *plan.Catalog
	validator  *lifecycle.Validator
	checker    *refund.Checker
	store      Store
	gateway    Gateway
	notifier   Notifier
	metrics    Metrics
	audit      AuditRecorder
	logger     *slog.Logger
	now        func() time.Time
	successURL string
}

// NewService creates a Service.
// Panics if catalog, store, gateway or checker is nil to fail fast during initialization.
func NewService(catalog *plan.Catalog, store Store, gateway Gateway, checker *refund.Checker, opts ...ServiceOption) *Service {
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if store == nil {
		panic("billing: store is required")
	}
	if gateway == nil {
		panic("billing: gateway is required")
	}
	if checker == nil {
		panic("billing: refund checker is required")
	}

	s := &Service{
		catalog:   catalog,
		validator: lifecycle.NewValidator(catalog),
		checker:   checker,
		store:     store,
		gateway:   gateway,
		metrics:   noopMetrics{},
		audit:     noopAudit{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State loads the user's current snapshot.
func (s *Service) State(ctx context.Context, userID uuid.UUID) (subscription.State, error) {
	st, _, _, err := s.load(ctx, userID)
	return st, err
}

// AllowedTransitions lists the changes the user can make right now.
func (s *Service) AllowedTransitions(ctx context.Context, userID uuid.UUID) ([]lifecycle.Option, error) {
	st, err := s.State(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.validator.AllowedTransitions(st), nil
}

// CheckRefund evaluates refund eligibility without creating a request.
func (s *Service) CheckRefund(ctx context.Context, userID uuid.UUID) (refund.Decision, error) {
	user, err := s.store.FetchUser(ctx, userID)
	if err != nil {
		return refund.Decision{}, errors.Join(ErrFailedToLoadState, err)
	}
	d := s.checker.Check(ctx, user)
	s.metrics.RefundEvaluated(string(d.Code), d.Eligible)
	return d, nil
}

// Change validates and applies a lifecycle action. target is required for
// subscribe, upgrade and downgrade. Refunds go through RequestRefund.
func (s *Service) Change(ctx context.Context, userID uuid.UUID, action lifecycle.Action, target *plan.Tier) (*Result, error) {
	if action == lifecycle.ActionRefund {
		if _, err := s.RequestRefund(ctx, userID, ""); err != nil {
			return nil, err
		}
		return &Result{Decision: lifecycle.Decision{Valid: true, Code: lifecycle.CodeOK, Reason: "Refund requested"}}, nil
	}

	st, user, rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(logger.UserID(userID), logger.Action(string(action)), logger.Plan(st.CurrentPlan.String()))

	d := s.validator.ValidateTransition(st, action, target)
	s.metrics.TransitionEvaluated(string(action), string(d.Code), d.Valid)
	if !d.Valid {
		log.InfoContext(ctx, "transition rejected", logger.Code(string(d.Code)))
		return nil, &RejectedError{Action: string(action), Code: string(d.Code), Reason: d.Reason}
	}

	// Paying for a first plan, or upgrading without a provider subscription, is a checkout.
	if action == lifecycle.ActionSubscribe || (action == lifecycle.ActionUpgrade && !st.HasGatewaySubscription) {
		link, err := s.checkout(ctx, user, *target)
		if err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "checkout created", logger.TargetPlan(target.String()))
		return &Result{Decision: d, Checkout: link}, nil
	}

	if rec == nil {
		return nil, ErrSubscriptionNotFound
	}

	claimed, err := s.store.ClaimProcessing(ctx, userID, rec.Version)
	if err != nil {
		if errors.Is(err, ErrChangeInProgress) {
			log.WarnContext(ctx, "processing claim lost")
			return nil, err
		}
		return nil, fmt.Errorf("billing: claim processing: %w", err)
	}

	updated, entry, notice, err := s.apply(ctx, claimed, action, target)
	if err != nil {
		if rerr := s.store.ReleaseProcessing(ctx, userID); rerr != nil {
			log.ErrorContext(ctx, "failed to release processing flag", logger.Error(rerr))
			err = errors.Join(err, rerr)
		}
		log.ErrorContext(ctx, "transition failed", logger.Error(err))
		return nil, err
	}

	updated.ProcessingChange = false
	updated.UpdatedAt = s.now()
	if err := s.store.SaveSubscription(ctx, updated); err != nil {
		if rerr := s.store.ReleaseProcessing(ctx, userID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		log.ErrorContext(ctx, "failed to save subscription", logger.Error(err))
		return nil, errors.Join(ErrFailedToSave, err)
	}

	entry.Timestamp = string(subscription.TimestampOf(s.now()))
	if err := s.audit.RecordAudit(ctx, userID, entry); err != nil {
		log.WarnContext(ctx, "failed to record audit entry", logger.Error(err))
	}
	notice.UserID = userID
	notice.To = user.Email
	s.send(ctx, log, notice)

	log.InfoContext(ctx, "transition applied")
	return &Result{Decision: d, Record: updated}, nil
}

// RequestRefund checks the refund guard and eligibility, then files a pending
// refund request carrying a frozen copy of the eligibility details.
func (s *Service) RequestRefund(ctx context.Context, userID uuid.UUID, reason string) (*subscription.RefundRecord, error) {
	st, user, _, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(logger.UserID(userID), logger.Action(string(lifecycle.ActionRefund)))

	guard := s.validator.Refund(st)
	s.metrics.TransitionEvaluated(string(lifecycle.ActionRefund), string(guard.Code), guard.Valid)
	if !guard.Valid {
		log.InfoContext(ctx, "refund rejected by lifecycle guard", logger.Code(string(guard.Code)))
		return nil, &RejectedError{Action: string(lifecycle.ActionRefund), Code: string(guard.Code), Reason: guard.Reason}
	}

	d := s.checker.Check(ctx, user)
	s.metrics.RefundEvaluated(string(d.Code), d.Eligible)
	if !d.Eligible {
		return nil, &RejectedError{
			Action:      string(lifecycle.ActionRefund),
			Code:        string(d.Code),
			Reason:      d.Reason,
			AdminReview: d.AdminReviewRecommended,
		}
	}

	r := subscription.RefundRecord{
		ID:                 uuid.New(),
		UserID:             userID,
		Status:             subscription.RefundPending,
		Reason:             reason,
		EligibilityDetails: d.Details.Map(),
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateRefund(ctx, r); err != nil {
		if errors.Is(err, ErrRefundExists) {
			log.WarnContext(ctx, "concurrent refund request lost the insert")
			return nil, err
		}
		return nil, fmt.Errorf("billing: create refund: %w", err)
	}

	if err := s.audit.RecordAudit(ctx, userID, subscription.AuditEntry{
		Timestamp: string(subscription.TimestampOf(s.now())),
		Action:    "refund_requested",
		FromPlan:  st.CurrentPlan.String(),
	}); err != nil {
		log.WarnContext(ctx, "failed to record audit entry", logger.Error(err))
	}
	s.send(ctx, log, notify.Notice{
		Kind:     notify.KindRefundRequested,
		UserID:   userID,
		To:       user.Email,
		FromPlan: s.catalog.DisplayName(st.CurrentPlan),
	})

	log.InfoContext(ctx, "refund requested", logger.RefundID(r.ID))
	return &r, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (subscription.State, subscription.User, *subscription.Record, error) {
	user, err := s.store.FetchUser(ctx, userID)
	if err != nil {
		return subscription.State{}, subscription.User{}, nil, errors.Join(ErrFailedToLoadState, err)
	}
	rec, err := s.store.FetchSubscription(ctx, userID)
	if err != nil {
		return subscription.State{}, user, nil, errors.Join(ErrFailedToLoadState, err)
	}
	refunds, err := s.store.FetchNonTerminalRefunds(ctx, userID)
	if err != nil {
		return subscription.State{}, user, rec, errors.Join(ErrFailedToLoadState, err)
	}
	return subscription.NewState(user, rec, refunds, s.now()), user, rec, nil
}

func (s *Service) checkout(ctx context.Context, user subscription.User, target plan.Tier) (*CheckoutLink, error) {
	p, _ := s.catalog.Plan(target)
	link, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		PriceID:    p.GatewayPriceID,
		UserID:     user.ID,
		Email:      user.Email,
		Plan:       target,
		SuccessURL: s.successURL,
	})
	s.metrics.GatewayCall("create_checkout", err)
	if err != nil {
		return nil, errors.Join(ErrGatewayFailed, err)
	}
	return link, nil
}

// apply performs the gateway side of a claimed change and returns the record to store.
func (s *Service) apply(ctx context.Context, rec *subscription.Record, action lifecycle.Action, target *plan.Tier) (*subscription.Record, subscription.AuditEntry, notify.Notice, error) {
	next := rec.Clone()
	entry := subscription.AuditEntry{Action: string(action), FromPlan: rec.Plan.String()}
	var notice notify.Notice

	switch action {
	case lifecycle.ActionUpgrade:
		p, _ := s.catalog.Plan(*target)
		gs, err := s.gateway.ChangePlan(ctx, rec.GatewaySubscriptionID, p)
		s.metrics.GatewayCall("change_plan", err)
		if err != nil {
			return nil, entry, notice, errors.Join(ErrGatewayFailed, err)
		}
		next.Plan = *target
		next.PendingPlan = ""
		next.PendingPlanChangeAt = nil
		syncGateway(next, gs)
		entry.ToPlan = target.String()
		notice = notify.Notice{Kind: notify.KindPlanUpgraded}

	case lifecycle.ActionDowngrade:
		// The switch happens at rollover; until then the customer keeps the current plan.
		at := rec.CurrentPeriodEnd
		next.PendingPlan = *target
		next.PendingPlanChangeAt = &at
		entry.Action = "downgrade_scheduled"
		entry.ToPlan = target.String()
		notice = notify.Notice{Kind: notify.KindDowngradeScheduled, EffectiveAt: at}
		if cmp, ok := s.catalog.Compare(rec.Plan, *target); ok && (cmp.LosesStorage() || cmp.LosesGalleries()) {
			p, _ := s.catalog.Plan(*target)
			notice.QuotaReduced = true
			notice.StorageQuotaGB = p.StorageQuotaGB.String()
			notice.GalleryLimit = p.GalleryLimit
		}

	case lifecycle.ActionCancel:
		gs, err := s.gateway.CancelAtPeriodEnd(ctx, rec.GatewaySubscriptionID)
		s.metrics.GatewayCall("cancel", err)
		if err != nil {
			return nil, entry, notice, errors.Join(ErrGatewayFailed, err)
		}
		syncGateway(next, gs)
		at := next.CurrentPeriodEnd
		next.CancelAtPeriodEnd = true
		next.PendingPlan = plan.TierFree
		next.PendingPlanChangeAt = &at
		entry.ToPlan = plan.TierFree.String()
		notice = notify.Notice{Kind: notify.KindCancellationScheduled, EffectiveAt: at}

	case lifecycle.ActionReactivate:
		gs, err := s.gateway.Resume(ctx, rec.GatewaySubscriptionID)
		s.metrics.GatewayCall("resume", err)
		if err != nil {
			return nil, entry, notice, errors.Join(ErrGatewayFailed, err)
		}
		syncGateway(next, gs)
		next.CancelAtPeriodEnd = false
		next.PendingPlan = ""
		next.PendingPlanChangeAt = nil
		entry.ToPlan = rec.Plan.String()
		notice = notify.Notice{Kind: notify.KindReactivated}

	default:
		return nil, entry, notice, fmt.Errorf("billing: unsupported action %q", action)
	}

	notice.FromPlan = s.catalog.DisplayName(rec.Plan)
	if entry.ToPlan != "" {
		notice.ToPlan = s.catalog.DisplayName(plan.Tier(entry.ToPlan))
	}
	return next, entry, notice, nil
}

func syncGateway(rec *subscription.Record, gs *GatewaySubscription) {
	if gs == nil {
		return
	}
	if gs.Status != "" {
		rec.Status = gs.Status
	}
	if !gs.PeriodEnd.IsZero() {
		rec.CurrentPeriodEnd = gs.PeriodEnd
	}
}

func (s *Service) send(ctx context.Context, log *slog.Logger, n notify.Notice) {
	if s.notifier == nil || n.Kind == "" {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		log.WarnContext(ctx, "failed to send notice", logger.Error(err), slog.String("kind", string(n.Kind)))
	}
}
