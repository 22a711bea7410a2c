package billing

import (
	"context"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

type PaddleTransactionsFunc func(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)

func (f PaddleTransactionsFunc) CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
	return f(ctx, req)
}

type PaddleSubscriptionsStub struct {
	Update func(ctx context.Context, req *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error)
	Cancel func(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error)
}

func (s PaddleSubscriptionsStub) UpdateSubscription(ctx context.Context, req *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error) {
	return s.Update(ctx, req)
}

func (s PaddleSubscriptionsStub) CancelSubscription(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error) {
	return s.Cancel(ctx, req)
}

func NewPaddleGatewayWithClients(tx PaddleTransactionsFunc, subs PaddleSubscriptionsStub, now func() time.Time) *PaddleGateway {
	return &PaddleGateway{transactions: tx, subscriptions: subs, ttl: 24 * time.Hour, now: now}
}
