package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gallerybilling/pkg/billing"
	"github.com/dmitrymomot/gallerybilling/pkg/lifecycle"
	"github.com/dmitrymomot/gallerybilling/pkg/notify"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/refund"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

var (
	now       = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	periodEnd = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	userID    = uuid.MustParse("7d2b9e4f-1a3c-4e5d-8f6a-0b1c2d3e4f5a")
	user      = subscription.User{ID: userID, Email: "ann@example.com"}
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchUser(ctx context.Context, id uuid.UUID) (subscription.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(subscription.User), args.Error(1)
}

func (m *mockStore) FetchSubscription(ctx context.Context, id uuid.UUID) (*subscription.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*subscription.Record)
	return rec, args.Error(1)
}

func (m *mockStore) FetchNonTerminalRefunds(ctx context.Context, id uuid.UUID) ([]subscription.RefundRecord, error) {
	args := m.Called(ctx, id)
	refunds, _ := args.Get(0).([]subscription.RefundRecord)
	return refunds, args.Error(1)
}

func (m *mockStore) ClaimProcessing(ctx context.Context, id uuid.UUID, version int64) (*subscription.Record, error) {
	args := m.Called(ctx, id, version)
	rec, _ := args.Get(0).(*subscription.Record)
	return rec, args.Error(1)
}

func (m *mockStore) ReleaseProcessing(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) SaveSubscription(ctx context.Context, rec *subscription.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) CreateRefund(ctx context.Context, r subscription.RefundRecord) error {
	return m.Called(ctx, r).Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutLink, error) {
	args := m.Called(ctx, req)
	link, _ := args.Get(0).(*billing.CheckoutLink)
	return link, args.Error(1)
}

func (m *mockGateway) ChangePlan(ctx context.Context, id string, target plan.Plan) (*billing.GatewaySubscription, error) {
	args := m.Called(ctx, id, target)
	gs, _ := args.Get(0).(*billing.GatewaySubscription)
	return gs, args.Error(1)
}

func (m *mockGateway) CancelAtPeriodEnd(ctx context.Context, id string) (*billing.GatewaySubscription, error) {
	args := m.Called(ctx, id)
	gs, _ := args.Get(0).(*billing.GatewaySubscription)
	return gs, args.Error(1)
}

func (m *mockGateway) Resume(ctx context.Context, id string) (*billing.GatewaySubscription, error) {
	args := m.Called(ctx, id)
	gs, _ := args.Get(0).(*billing.GatewaySubscription)
	return gs, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, n notify.Notice) error {
	return m.Called(ctx, n).Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) RecordAudit(ctx context.Context, id uuid.UUID, e subscription.AuditEntry) error {
	return m.Called(ctx, id, e).Error(0)
}

type fixture struct {
	store    *mockStore
	gateway  *mockGateway
	notifier *mockNotifier
	audit    *mockAudit
	usage    subscription.UsageSnapshot
	svc      *billing.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    &mockStore{},
		gateway:  &mockGateway{},
		notifier: &mockNotifier{},
		audit:    &mockAudit{},
		usage:    subscription.UsageSnapshot{TotalStorageGB: decimal.NewFromInt(1), ResourcesCreatedSince: 1},
	}

	catalog := plan.MustDefault()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return now }

	checker := refund.NewChecker(refund.NewEngine(catalog), f.store, f.store,
		subscription.UsageFetcherFunc(func(context.Context, uuid.UUID, time.Time) (subscription.UsageSnapshot, error) {
			return f.usage, nil
		}),
		subscription.AuditFetcherFunc(func(context.Context, uuid.UUID, int) ([]subscription.AuditEntry, error) {
			return nil, nil
		}),
		refund.WithLogger(discard),
		refund.WithClock(clock),
	)

	f.svc = billing.NewService(catalog, f.store, f.gateway, checker,
		billing.WithLogger(discard),
		billing.WithNotifier(f.notifier),
		billing.WithAuditRecorder(f.audit),
		billing.WithClock(clock),
	)
	return f
}

func (f *fixture) loads(rec *subscription.Record, refunds []subscription.RefundRecord) {
	f.store.On("FetchUser", mock.Anything, userID).Return(user, nil)
	f.store.On("FetchSubscription", mock.Anything, userID).Return(rec, nil)
	f.store.On("FetchNonTerminalRefunds", mock.Anything, userID).Return(refunds, nil)
}

func activeRecord(tier plan.Tier) *subscription.Record {
	return &subscription.Record{
		UserID:                userID,
		Plan:                  tier,
		Status:                subscription.StatusActive,
		CurrentPeriodEnd:      periodEnd,
		GatewaySubscriptionID: "sub_01",
		CreatedAt:             subscription.TimestampOf(now.Add(-3 * 24 * time.Hour)),
		Version:               4,
	}
}

func claimed(rec *subscription.Record) *subscription.Record {
	c := rec.Clone()
	c.ProcessingChange = true
	c.Version++
	return c
}

func tierPtr(t plan.Tier) *plan.Tier { return &t }

func TestService_Upgrade(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPlus)
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(claimed(rec), nil)
	f.gateway.On("ChangePlan", mock.Anything, "sub_01", mock.MatchedBy(func(p plan.Plan) bool {
		return p.Tier == plan.TierPro && p.GatewayPriceID != ""
	})).Return(&billing.GatewaySubscription{ID: "sub_01", Status: subscription.StatusActive, PeriodEnd: periodEnd.AddDate(0, 1, 0)}, nil)
	f.store.On("SaveSubscription", mock.Anything, mock.MatchedBy(func(r *subscription.Record) bool {
		return r.Plan == plan.TierPro && !r.ProcessingChange && r.Version == 5
	})).Return(nil)
	f.audit.On("RecordAudit", mock.Anything, userID, mock.MatchedBy(func(e subscription.AuditEntry) bool {
		return e.Action == "upgrade" && e.FromPlan == "plus" && e.ToPlan == "pro" && e.Timestamp != ""
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(n notify.Notice) bool {
		return n.Kind == notify.KindPlanUpgraded && n.To == user.Email && n.ToPlan == "Pro"
	})).Return(nil)

	res, err := f.svc.Change(context.Background(), userID, lifecycle.ActionUpgrade, tierPtr(plan.TierPro))
	require.NoError(t, err)
	assert.True(t, res.Decision.Valid)
	assert.Equal(t, plan.TierPro, res.Record.Plan)
	assert.Equal(t, periodEnd.AddDate(0, 1, 0), res.Record.CurrentPeriodEnd)

	f.store.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.audit.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestService_RejectedTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPro)
	rec.CancelAtPeriodEnd = true
	f.loads(rec, nil)

	_, err := f.svc.Change(context.Background(), userID, lifecycle.ActionUpgrade, tierPtr(plan.TierUltimate))

	var rej *billing.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, billing.ErrTransitionRejected)
	assert.Equal(t, string(lifecycle.CodeSubscriptionCanceled), rej.Code)
	f.store.AssertNotCalled(t, "ClaimProcessing", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "ChangePlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ClaimLost(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPro)
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(nil, billing.ErrChangeInProgress)

	_, err := f.svc.Change(context.Background(), userID, lifecycle.ActionCancel, nil)
	assert.ErrorIs(t, err, billing.ErrChangeInProgress)
	f.gateway.AssertNotCalled(t, "CancelAtPeriodEnd", mock.Anything, mock.Anything)
}

func TestService_GatewayFailureReleasesClaim(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPro)
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(claimed(rec), nil)
	f.gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_01").Return(nil, errors.New("paddle: 500"))
	f.store.On("ReleaseProcessing", mock.Anything, userID).Return(nil)

	_, err := f.svc.Change(context.Background(), userID, lifecycle.ActionCancel, nil)
	assert.ErrorIs(t, err, billing.ErrGatewayFailed)
	f.store.AssertCalled(t, "ReleaseProcessing", mock.Anything, userID)
	f.store.AssertNotCalled(t, "SaveSubscription", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPlus)
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(claimed(rec), nil)
	f.gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_01").Return(&billing.GatewaySubscription{ID: "sub_01"}, nil)
	f.store.On("SaveSubscription", mock.Anything, mock.Anything).Return(nil)
	f.audit.On("RecordAudit", mock.Anything, userID, mock.Anything).Return(errors.New("mongo down"))
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(n notify.Notice) bool {
		return n.Kind == notify.KindCancellationScheduled && n.EffectiveAt.Equal(periodEnd)
	})).Return(errors.New("postmark down"))

	res, err := f.svc.Change(context.Background(), userID, lifecycle.ActionCancel, nil)
	require.NoError(t, err, "audit and notice failures do not fail the change")
	assert.True(t, res.Record.CancelAtPeriodEnd)
	assert.Equal(t, plan.TierFree, res.Record.PendingPlan)
	require.NotNil(t, res.Record.PendingPlanChangeAt)
	assert.Equal(t, periodEnd, *res.Record.PendingPlanChangeAt)
	assert.Equal(t, plan.TierPlus, res.Record.Plan)
}

func TestService_DowngradeIsScheduled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPro)
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(claimed(rec), nil)
	f.store.On("SaveSubscription", mock.Anything, mock.Anything).Return(nil)
	f.audit.On("RecordAudit", mock.Anything, userID, mock.MatchedBy(func(e subscription.AuditEntry) bool {
		return e.Action == "downgrade_scheduled" && e.ToPlan == "starter"
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(n notify.Notice) bool {
		return n.Kind == notify.KindDowngradeScheduled && n.QuotaReduced
	})).Return(nil)

	res, err := f.svc.Change(context.Background(), userID, lifecycle.ActionDowngrade, tierPtr(plan.TierStarter))
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, res.Record.Plan)
	assert.Equal(t, plan.TierStarter, res.Record.PendingPlan)
	f.gateway.AssertNotCalled(t, "ChangePlan", mock.Anything, mock.Anything, mock.Anything)
	f.audit.AssertExpectations(t)
}

func TestService_Reactivate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPlus)
	rec.CancelAtPeriodEnd = true
	rec.PendingPlan = plan.TierFree
	at := periodEnd
	rec.PendingPlanChangeAt = &at
	f.loads(rec, nil)
	f.store.On("ClaimProcessing", mock.Anything, userID, int64(4)).Return(claimed(rec), nil)
	f.gateway.On("Resume", mock.Anything, "sub_01").Return(&billing.GatewaySubscription{ID: "sub_01", Status: subscription.StatusActive}, nil)
	f.store.On("SaveSubscription", mock.Anything, mock.Anything).Return(nil)
	f.audit.On("RecordAudit", mock.Anything, userID, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Change(context.Background(), userID, lifecycle.ActionReactivate, nil)
	require.NoError(t, err)
	assert.False(t, res.Record.CancelAtPeriodEnd)
	assert.Empty(t, res.Record.PendingPlan)
	assert.Nil(t, res.Record.PendingPlanChangeAt)
}

func TestService_SubscribeCreatesCheckout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.loads(nil, nil)
	f.gateway.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
		return req.PriceID == "pri_plus_monthly" && req.UserID == userID && req.Email == user.Email
	})).Return(&billing.CheckoutLink{URL: "https://pay.example.com/x"}, nil)

	res, err := f.svc.Change(context.Background(), userID, lifecycle.ActionSubscribe, tierPtr(plan.TierPlus))
	require.NoError(t, err)
	require.NotNil(t, res.Checkout)
	assert.Equal(t, "https://pay.example.com/x", res.Checkout.URL)
	assert.Nil(t, res.Record)
	f.store.AssertNotCalled(t, "ClaimProcessing", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_MissingTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.loads(activeRecord(plan.TierPlus), nil)

	_, err := f.svc.Change(context.Background(), userID, lifecycle.ActionUpgrade, nil)
	var rej *billing.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, string(lifecycle.CodeMissingPlan), rej.Code)
}

func TestService_LoadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.On("FetchUser", mock.Anything, userID).Return(subscription.User{}, errors.New("db down"))

	_, err := f.svc.Change(context.Background(), userID, lifecycle.ActionCancel, nil)
	assert.ErrorIs(t, err, billing.ErrFailedToLoadState)
}

func TestService_RequestRefund(t *testing.T) {
	t.Parallel()

	t.Run("files pending refund with frozen details", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.loads(activeRecord(plan.TierPlus), nil)
		f.store.On("CreateRefund", mock.Anything, mock.MatchedBy(func(r subscription.RefundRecord) bool {
			return r.UserID == userID &&
				r.Status == subscription.RefundPending &&
				r.EligibilityDetails["current_plan"] == "plus" &&
				r.Reason == "not what I expected"
		})).Return(nil)
		f.audit.On("RecordAudit", mock.Anything, userID, mock.Anything).Return(nil)
		f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

		r, err := f.svc.RequestRefund(context.Background(), userID, "not what I expected")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.Equal(t, now, r.CreatedAt)
	})

	t.Run("lost insert race", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.loads(activeRecord(plan.TierPlus), nil)
		f.store.On("CreateRefund", mock.Anything, mock.Anything).Return(billing.ErrRefundExists)

		_, err := f.svc.RequestRefund(context.Background(), userID, "")
		assert.ErrorIs(t, err, billing.ErrRefundExists)
	})

	t.Run("guard rejects while processing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := activeRecord(plan.TierPlus)
		rec.ProcessingChange = true
		f.loads(rec, nil)

		_, err := f.svc.RequestRefund(context.Background(), userID, "")
		var rej *billing.RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, string(lifecycle.CodeProcessingChange), rej.Code)
	})

	t.Run("engine rejects heavy usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.usage = subscription.UsageSnapshot{TotalStorageGB: decimal.NewFromInt(9), ResourcesCreatedSince: 2}
		f.loads(activeRecord(plan.TierPlus), nil)

		_, err := f.svc.RequestRefund(context.Background(), userID, "")
		var rej *billing.RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, string(refund.CodeUsageExceedsStarterBaseline), rej.Code)
		f.store.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})
}

func TestService_AllowedTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := activeRecord(plan.TierPro)
	rec.CancelAtPeriodEnd = true
	f.loads(rec, nil)

	opts, err := f.svc.AllowedTransitions(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, lifecycle.ActionReactivate, opts[0].Action)
}

func TestNewService_PanicsOnMissingDependencies(t *testing.T) {
	t.Parallel()

	catalog := plan.MustDefault()
	store := &mockStore{}
	gw := &mockGateway{}
	noop := subscription.UsageFetcherFunc(func(context.Context, uuid.UUID, time.Time) (subscription.UsageSnapshot, error) {
		return subscription.UsageSnapshot{}, nil
	})
	audit := subscription.AuditFetcherFunc(func(context.Context, uuid.UUID, int) ([]subscription.AuditEntry, error) {
		return nil, nil
	})
	checker := refund.NewChecker(refund.NewEngine(catalog), store, store, noop, audit)

	assert.Panics(t, func() { billing.NewService(nil, store, gw, checker) })
	assert.Panics(t, func() { billing.NewService(catalog, nil, gw, checker) })
	assert.Panics(t, func() { billing.NewService(catalog, store, nil, checker) })
	assert.Panics(t, func() { billing.NewService(catalog, store, gw, nil) })
}
