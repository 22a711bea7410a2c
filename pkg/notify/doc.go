// Package notify delivers billing notices to customers by email.
//
// A Notice says what happened (upgrade, scheduled downgrade, scheduled
// cancellation, reactivation, refund request) in plan display names. Senders
// render it to a subject and an HTML body and deliver it:
//
//   - PostmarkSender sends through Postmark's transactional API
//   - FileSender writes HTML and JSON files to a directory for local development
//
// Both validate the notice first and return ErrInvalidNotice for incomplete ones.
package notify
