package workflow

import (
	"time"

	"github.com/buildhub/datasync_backend/config"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/buildhub/datasync_backend/workflow")

// Options carries the business rules and collaborators shared by the
// fan-out writers, the checker and the reconciler.
type Options struct {
	Settings config.SyncSettings
	Tax      TaxPolicy
	Locker   UserLocker
	Clock    func() time.Time
}

func NewOptions(settings config.SyncSettings) Options {
	return Options{
		Settings: settings,
		Tax:      FlatVatPolicy{Rate: settings.VatRate},
		Locker:   NewLocalUserLocker(),
		Clock:    time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return time.Now().UTC()
	}
	return o.Clock().UTC()
}

func (o Options) tax() TaxPolicy {
	if o.Tax == nil {
		return FlatVatPolicy{Rate: o.Settings.VatRate}
	}
	return o.Tax
}

func (o Options) locker() UserLocker {
	if o.Locker == nil {
		return noopUserLocker{}
	}
	return o.Locker
}
