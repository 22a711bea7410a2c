package notify

// Config holds notice delivery configuration. The Postmark tokens are optional
// so development setups can fall back to FileSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	OutboxDir            string `env:"NOTIFY_OUTBOX_DIR" envDefault:"./outbox"`
}
