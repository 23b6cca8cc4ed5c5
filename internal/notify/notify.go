// Package notify is the seam for outbound notifications on claim and
// cancel. Formatting and delivery belong to an external collaborator; this
// package only defines the contract and a logging default.
package notify

import (
	"context"

	appLog "liturgyd/internal/log"
	"liturgyd/internal/model"
)

// Notifier receives claim lifecycle events. Implementations must not block
// the request path on delivery.
type Notifier interface {
	Claimed(ctx context.Context, a model.Assignment)
	Cancelled(ctx context.Context, a model.Assignment)
}

// Log is the default Notifier; it records the event and nothing more.
type Log struct{}

func (Log) Claimed(_ context.Context, a model.Assignment) {
	appLog.Info("notify: claim",
		"record_id", a.RecordID, "date", a.Date, "role", a.RoleTag, "name", a.Name, "email", a.Email)
}

func (Log) Cancelled(_ context.Context, a model.Assignment) {
	appLog.Info("notify: cancel",
		"record_id", a.RecordID, "date", a.Date, "role", a.RoleTag, "name", a.Name)
}
