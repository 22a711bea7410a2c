package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// PaddleConfig holds configuration for the Paddle gateway.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// CheckoutTTL is how long a hosted checkout link is advertised as valid.
	CheckoutTTL time.Duration `env:"PADDLE_CHECKOUT_TTL" envDefault:"24h"`
}

type paddleTransactions interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

type paddleSubscriptions interface {
	UpdateSubscription(ctx context.Context, req *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error)
	CancelSubscription(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error)
}

// PaddleGateway implements Gateway on the Paddle Billing API.
type PaddleGateway struct {
	transactions  paddleTransactions
	subscriptions paddleSubscriptions
	ttl           time.Duration
	now           func() time.Time
}

// NewPaddleGateway creates a Paddle gateway for the production or sandbox environment.
func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidGatewayEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	ttl := cfg.CheckoutTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &PaddleGateway{
		transactions:  client.TransactionsClient,
		subscriptions: client.SubscriptionsClient,
		ttl:           ttl,
		now:           time.Now,
	}, nil
}

// CreateCheckout opens a hosted checkout for the plan's price. The user id travels
// in custom data so the completed transaction can be matched to the account.
func (g *PaddleGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
			"plan":    req.Plan.String(),
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := g.transactions.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}

// ChangePlan swaps the subscription's item for the target plan's price and bills
// the prorated difference immediately.
func (g *PaddleGateway) ChangePlan(ctx context.Context, subscriptionID string, target plan.Plan) (*GatewaySubscription, error) {
	if subscriptionID == "" {
		return nil, ErrMissingGatewaySubscription
	}
	if target.GatewayPriceID == "" {
		return nil, ErrMissingPriceID
	}

	item := paddle.NewUpdateSubscriptionItemsSubscriptionUpdateItemFromCatalog(&paddle.SubscriptionUpdateItemFromCatalog{
		PriceID:  target.GatewayPriceID,
		Quantity: 1,
	})

	sub, err := g.subscriptions.UpdateSubscription(ctx, &paddle.UpdateSubscriptionRequest{
		SubscriptionID:       subscriptionID,
		Items:                paddle.NewPatchField([]paddle.UpdateSubscriptionItems{*item}),
		ProrationBillingMode: paddle.NewPatchField(paddle.ProrationBillingModeProratedImmediately),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update paddle subscription: %w", err)
	}
	return fromPaddle(sub), nil
}

// CancelAtPeriodEnd schedules cancellation for the end of the billing period.
func (g *PaddleGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*GatewaySubscription, error) {
	if subscriptionID == "" {
		return nil, ErrMissingGatewaySubscription
	}

	sub, err := g.subscriptions.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionID,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel paddle subscription: %w", err)
	}
	return fromPaddle(sub), nil
}

// Resume removes a scheduled cancellation.
func (g *PaddleGateway) Resume(ctx context.Context, subscriptionID string) (*GatewaySubscription, error) {
	if subscriptionID == "" {
		return nil, ErrMissingGatewaySubscription
	}

	sub, err := g.subscriptions.UpdateSubscription(ctx, &paddle.UpdateSubscriptionRequest{
		SubscriptionID:  subscriptionID,
		ScheduledChange: paddle.NewNullPatchField[*paddle.SubscriptionScheduledChange](),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resume paddle subscription: %w", err)
	}
	return fromPaddle(sub), nil
}

func fromPaddle(sub *paddle.Subscription) *GatewaySubscription {
	if sub == nil {
		return nil
	}
	gs := &GatewaySubscription{
		ID:     sub.ID,
		Status: mapPaddleStatus(string(sub.Status)),
	}
	if sub.CurrentBillingPeriod != nil {
		if end, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt); err == nil {
			gs.PeriodEnd = end.UTC()
		}
	}
	return gs
}

func mapPaddleStatus(status string) subscription.Status {
	switch strings.ToLower(status) {
	case "trialing":
		return subscription.StatusTrialing
	case "active":
		return subscription.StatusActive
	case "past_due":
		return subscription.StatusPastDue
	case "canceled", "cancelled":
		return subscription.StatusCancelled
	default:
		return subscription.Status(status)
	}
}
