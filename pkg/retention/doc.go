// Package retention deletes old audit records and saved sessions on a
// cron schedule.
//
// Each data set is a Target with its own retention period and schedule:
//
//	pruner := retention.NewPruner("sessions", store, retention.Config{
//	    RetentionDays: 30,
//	    PruneSchedule: "0 3 * * *", // daily at 3 AM
//	}, collector)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// A zero RetentionDays keeps data forever and an empty schedule disables
// the background job. Prune can always be called directly, which is what
// the "audit prune" command does.
package retention
