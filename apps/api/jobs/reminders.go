// Package jobs schedules the background work of the API process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/fee"
)

// cronLogger routes the scheduler's own logs to core.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = (*cronLogger)(nil)

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), append([]interface{}{err}, keysAndValues...)...)
}

// NewScheduler returns a stopped scheduler running the fee reminder job on Billing.ReminderSchedule.
// A run is skipped while the previous one is still going.
func NewScheduler(conf *core.Config, feeSvc fee.ServiceInterface, logger core.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(conf.Billing.ReminderSchedule, SendFeeReminders(feeSvc, logger, time.Now)); err != nil {
		return nil, errors.Wrapf(err, "scheduling fee reminders %q", conf.Billing.ReminderSchedule)
	}
	return c, nil
}

// SendFeeReminders is the fee reminder job.
func SendFeeReminders(feeSvc fee.ServiceInterface, logger core.Logger, now func() time.Time) func() {
	return func() {
		sent, err := feeSvc.SendDueReminders(context.Background(), now())
		if err != nil {
			logger.Error(fmt.Sprintf("sending fee reminders: %v", err), err)
			return
		}
		logger.Info(fmt.Sprintf("fee reminders sent: %d", sent))
	}
}
