package scheduler

import (
	mesos "github.com/mesos/mesos-go/api/v0/mesosproto"
	sched "github.com/mesos/mesos-go/api/v0/scheduler"
)

// Driver is the slice of the Mesos scheduler driver the scheduler consumes.
// *sched.MesosSchedulerDriver satisfies it; tests substitute a mock.
type Driver interface {
	// Run starts the driver session and blocks until it is stopped or
	// aborted.
	Run() (mesos.Status, error)

	// Stop shuts the session down. With failover false the master is
	// told the framework will not return.
	Stop(failover bool) (mesos.Status, error)

	// Abort terminates the session without unregistering the framework.
	Abort() (mesos.Status, error)

	// DeclineOffer returns an unused offer to the master.
	DeclineOffer(offerID *mesos.OfferID, filters *mesos.Filters) (mesos.Status, error)

	// LaunchTasks submits tasks against the given offers.
	LaunchTasks(offerIDs []*mesos.OfferID, tasks []*mesos.TaskInfo, filters *mesos.Filters) (mesos.Status, error)

	// KillTask asks the master to kill a launched task. The resulting
	// terminal status arrives as a regular status update.
	KillTask(taskID *mesos.TaskID) (mesos.Status, error)
}

// DriverFactory builds the driver delivering cluster callbacks to the given
// scheduler. Injected so main can supply the real Mesos driver and tests a
// mock.
type DriverFactory func(s sched.Scheduler) (Driver, error)
