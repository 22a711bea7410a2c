package notify

import (
	"context"

	"github.com/mrz1836/postmark"
)

type PostmarkAPIFunc func(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)

func (f PostmarkAPIFunc) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	return f(ctx, email)
}

func NewPostmarkSenderWithAPI(api PostmarkAPIFunc, cfg Config) *PostmarkSender {
	return &PostmarkSender{client: api, config: cfg}
}
