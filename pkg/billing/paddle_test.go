package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gallerybilling/pkg/billing"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

func TestNewPaddleGateway_Config(t *testing.T) {
	t.Parallel()

	_, err := billing.NewPaddleGateway(billing.PaddleConfig{})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	_, err = billing.NewPaddleGateway(billing.PaddleConfig{APIKey: "key", Environment: "staging"})
	assert.ErrorIs(t, err, billing.ErrInvalidGatewayEnvironment)

	gw, err := billing.NewPaddleGateway(billing.PaddleConfig{APIKey: "key", Environment: "Sandbox"})
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestPaddleGateway_CreateCheckout(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	user := uuid.MustParse("3c1e5f7a-9b2d-4e6f-8a0c-2d4f6b8a0c2e")

	t.Run("returns hosted url", func(t *testing.T) {
		t.Parallel()
		var got *paddle.CreateTransactionRequest
		gw := billing.NewPaddleGatewayWithClients(func(_ context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
			got = req
			return &paddle.Transaction{ID: "txn_01", Checkout: &paddle.TransactionCheckout{URL: paddle.PtrTo("https://pay.example.com/txn_01")}}, nil
		}, billing.PaddleSubscriptionsStub{}, func() time.Time { return clock })

		link, err := gw.CreateCheckout(context.Background(), billing.CheckoutRequest{
			PriceID: "pri_plus_monthly",
			UserID:  user,
			Email:   "ann@example.com",
			Plan:    plan.TierPlus,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/txn_01", link.URL)
		assert.Equal(t, "txn_01", link.SessionID)
		assert.Equal(t, clock.Add(24*time.Hour), link.ExpiresAt)

		require.NotNil(t, got)
		assert.Equal(t, user.String(), got.CustomData["user_id"])
		assert.Equal(t, "plus", got.CustomData["plan"])
		assert.Equal(t, "ann@example.com", got.CustomData["email"])
		assert.Nil(t, got.Checkout)
	})

	t.Run("missing price", func(t *testing.T) {
		t.Parallel()
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{}, time.Now)
		_, err := gw.CreateCheckout(context.Background(), billing.CheckoutRequest{UserID: user})
		assert.ErrorIs(t, err, billing.ErrMissingPriceID)
	})

	t.Run("no url returned", func(t *testing.T) {
		t.Parallel()
		gw := billing.NewPaddleGatewayWithClients(func(context.Context, *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
			return &paddle.Transaction{ID: "txn_02"}, nil
		}, billing.PaddleSubscriptionsStub{}, time.Now)
		_, err := gw.CreateCheckout(context.Background(), billing.CheckoutRequest{PriceID: "pri", UserID: user})
		assert.ErrorIs(t, err, billing.ErrNoCheckoutURL)
	})
}

func TestPaddleGateway_SubscriptionMutations(t *testing.T) {
	t.Parallel()

	periodEnd := "2025-04-01T00:00:00Z"
	result := &paddle.Subscription{
		ID:                   "sub_01",
		Status:               paddle.SubscriptionStatusActive,
		CurrentBillingPeriod: &paddle.TimePeriod{StartsAt: "2025-03-01T00:00:00Z", EndsAt: periodEnd},
	}

	t.Run("change plan", func(t *testing.T) {
		t.Parallel()
		var got *paddle.UpdateSubscriptionRequest
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{
			Update: func(_ context.Context, req *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error) {
				got = req
				return result, nil
			},
		}, time.Now)

		gs, err := gw.ChangePlan(context.Background(), "sub_01", plan.Plan{Tier: plan.TierPro, GatewayPriceID: "pri_pro_monthly"})
		require.NoError(t, err)
		assert.Equal(t, "sub_01", got.SubscriptionID)
		assert.NotNil(t, got.Items)
		assert.Equal(t, subscription.StatusActive, gs.Status)
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), gs.PeriodEnd)
	})

	t.Run("change plan without price", func(t *testing.T) {
		t.Parallel()
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{}, time.Now)
		_, err := gw.ChangePlan(context.Background(), "sub_01", plan.Plan{Tier: plan.TierFree})
		assert.ErrorIs(t, err, billing.ErrMissingPriceID)
	})

	t.Run("cancel at period end", func(t *testing.T) {
		t.Parallel()
		var got *paddle.CancelSubscriptionRequest
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{
			Cancel: func(_ context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error) {
				got = req
				return result, nil
			},
		}, time.Now)

		_, err := gw.CancelAtPeriodEnd(context.Background(), "sub_01")
		require.NoError(t, err)
		require.NotNil(t, got.EffectiveFrom)
		assert.Equal(t, paddle.EffectiveFromNextBillingPeriod, *got.EffectiveFrom)
	})

	t.Run("resume error is wrapped", func(t *testing.T) {
		t.Parallel()
		apiErr := errors.New("paddle: 409 conflict")
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{
			Update: func(context.Context, *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error) {
				return nil, apiErr
			},
		}, time.Now)

		_, err := gw.Resume(context.Background(), "sub_01")
		assert.ErrorIs(t, err, apiErr)
	})

	t.Run("missing subscription id", func(t *testing.T) {
		t.Parallel()
		gw := billing.NewPaddleGatewayWithClients(nil, billing.PaddleSubscriptionsStub{}, time.Now)
		_, err := gw.CancelAtPeriodEnd(context.Background(), "")
		assert.ErrorIs(t, err, billing.ErrMissingGatewaySubscription)
		_, err = gw.Resume(context.Background(), "")
		assert.ErrorIs(t, err, billing.ErrMissingGatewaySubscription)
	})
}
