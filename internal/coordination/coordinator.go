package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/beacon-works/beacon/internal/config"
	"github.com/beacon-works/beacon/internal/errors"
	"github.com/beacon-works/beacon/internal/lockcheck"
	"github.com/beacon-works/beacon/internal/logging"
	"github.com/beacon-works/beacon/internal/runtime"
	"github.com/beacon-works/beacon/internal/spec"
	"github.com/beacon-works/beacon/internal/workspace"
)

// Coordinator is the operation surface over both planes.
type Coordinator struct {
	specs *spec.Store
	rt    *runtime.Store
	cfg   *config.Config
	log   *logging.Logger
}

// New builds a coordinator for the given workspace. The runtime database
// is opened immediately; callers own Close.
func New(ws workspace.Workspace, cfg *config.Config, log *logging.Logger) (*Coordinator, error) {
	specs := spec.NewStore(ws.SpecPath())
	specs.SetLockTimeout(cfg.Spec.LockTimeout())

	rt, err := runtime.Open(ws.RuntimePath())
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		specs: specs,
		rt:    rt,
		cfg:   cfg,
		log:   log.WithComponent("coordination"),
	}, nil
}

// Close releases the runtime store.
func (c *Coordinator) Close() error { return c.rt.Close() }

// Specs exposes the spec store for read paths the CLI drives directly.
func (c *Coordinator) Specs() *spec.Store { return c.specs }

// Runtime exposes the runtime store for read paths the CLI drives directly.
func (c *Coordinator) Runtime() *runtime.Store { return c.rt }

// event appends an audit record; failures are logged, never propagated.
func (c *Coordinator) event(kind, actorID, taskID, detail string) {
	if err := c.rt.AppendEvent(kind, actorID, taskID, detail); err != nil {
		c.log.Warn("audit event dropped", "kind", kind, "error", err)
	}
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Task         *spec.Task
	Lease        *runtime.Lease
	LockWarnings []lockcheck.Overlap
}

// Claim leases a task for an agent. With an empty taskID the highest
// priority claimable, unleased task is picked. The claim checks the
// graph first, then races the guarded lease insert; lock-pattern
// overlaps with other actively leased tasks come back as warnings, they
// never block the claim. Force skips the lock-pattern pass entirely.
func (c *Coordinator) Claim(taskID, agentID string, ttl time.Duration, force bool) (*ClaimResult, error) {
	if _, err := c.rt.GetAgent(agentID); err != nil {
		return nil, err
	}

	doc, err := c.specs.Load()
	if err != nil {
		return nil, err
	}

	var task *spec.Task
	if taskID == "" {
		task, err = c.pickNext(doc)
		if err != nil {
			return nil, err
		}
	} else {
		task = doc.GetTask(taskID)
		if task == nil {
			return nil, errors.NewNotFoundError("task", taskID)
		}
		if !task.IsClaimable(doc.VerifiedSet()) {
			return nil, errors.NewNotClaimableError(taskID, task.Status.String(), c.unmetDeps(doc, task))
		}
	}

	lease, err := c.rt.CreateLease(task.ID, agentID, c.leaseTTL(ttl))
	if err != nil {
		return nil, err
	}

	var warnings []lockcheck.Overlap
	if !force {
		warnings = c.lockWarnings(doc, task)
	}
	c.event(runtime.EventClaim, agentID, task.ID, fmt.Sprintf("lease=%s ttl=%s", lease.ID, lease.ExpiresAt.Sub(lease.CreatedAt)))
	c.log.Info("task claimed", "task", task.ID, "agent", agentID, "lease", lease.ID)

	return &ClaimResult{Task: task, Lease: lease, LockWarnings: warnings}, nil
}

// leaseTTL resolves a requested TTL against the configured default and
// bounds. Zero means "use the default"; out-of-range requests clamp.
// The runtime store's absolute bounds still apply afterwards.
func (c *Coordinator) leaseTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.cfg.Lease.TTL()
	}
	if min := c.cfg.Lease.MinTTL(); ttl < min {
		ttl = min
	}
	if max := c.cfg.Lease.MaxTTL(); ttl > max {
		ttl = max
	}
	return ttl
}

// pickNext returns the best claimable task without a live lease.
func (c *Coordinator) pickNext(doc *spec.Spec) (*spec.Task, error) {
	for _, candidate := range doc.ClaimableTasks() {
		lease, err := c.rt.ActiveLease(candidate.ID)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			return candidate, nil
		}
	}
	return nil, errors.Wrap(errors.ErrNotClaimable, "no claimable task available")
}

// unmetDeps lists a task's dependencies that are not yet verified.
func (c *Coordinator) unmetDeps(doc *spec.Spec, task *spec.Task) []string {
	verified := doc.VerifiedSet()
	var unmet []string
	for _, dep := range task.DependsOn {
		if !verified[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// lockWarnings compares the task's lock patterns with those of every
// other task currently under a live lease.
func (c *Coordinator) lockWarnings(doc *spec.Spec, task *spec.Task) []lockcheck.Overlap {
	if len(task.Locks) == 0 {
		return nil
	}
	active, err := c.rt.ActiveLeases()
	if err != nil {
		c.log.Warn("lock check skipped", "error", err)
		return nil
	}
	var held []*spec.Task
	for _, lease := range active {
		if other := doc.GetTask(lease.TaskID); other != nil && other.ID != task.ID {
			held = append(held, other)
		}
	}
	return lockcheck.CheckAgainst(task, held)
}

// Renew extends an agent's lease. The ref may be a task id or a lease id.
func (c *Coordinator) Renew(ref, agentID string, ttl time.Duration) (*runtime.Lease, error) {
	lease, err := c.rt.RenewLease(ref, agentID, c.leaseTTL(ttl))
	if err != nil {
		return nil, err
	}
	c.event(runtime.EventRenew, agentID, lease.TaskID, fmt.Sprintf("lease=%s renews=%d", lease.ID, lease.RenewCount))
	return lease, nil
}

// Release ends an agent's lease on a task without changing task status.
func (c *Coordinator) Release(taskID, agentID string) error {
	if err := c.rt.ReleaseLease(taskID, agentID); err != nil {
		return err
	}
	c.event(runtime.EventRelease, agentID, taskID, "")
	c.log.Info("lease released", "task", taskID, "agent", agentID)
	return nil
}

// DoneResult is the outcome of MarkDone. Warnings flag suspicious but
// non-fatal states: reporting done on a task that was already done or
// verified, or one whose live lease belonged to someone else.
type DoneResult struct {
	Task     *spec.Task
	Warnings []string
}

// MarkDone moves a task to done and releases whatever live lease exists
// on it, whoever holds it: a reviewer driving the transition ends the
// worker's claim too. Done is accepted even when the lease already
// lapsed, so an agent that ran long does not lose its completion.
func (c *Coordinator) MarkDone(taskID, agentID string) (*DoneResult, error) {
	result := &DoneResult{}
	_, err := c.specs.Update(func(doc *spec.Spec) error {
		if prior := doc.GetTask(taskID); prior != nil && (prior.Status == spec.StatusDone || prior.Status == spec.StatusVerified) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("task %s was already %s", taskID, prior.Status))
		}
		var err error
		result.Task, err = doc.MarkDone(taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if holder := c.releaseAnyLease(taskID); holder != "" && holder != agentID {
		result.Warnings = append(result.Warnings, fmt.Sprintf("released lease held by %s", holder))
	}
	c.event(runtime.EventDone, agentID, taskID, "")
	c.log.Info("task done", "task", taskID, "agent", agentID)
	return result, nil
}

// releaseAnyLease expires the live lease on a task regardless of holder,
// returning the holder's id, or "" when there was nothing to release.
func (c *Coordinator) releaseAnyLease(taskID string) string {
	lease, err := c.rt.ActiveLease(taskID)
	if err != nil {
		c.log.Warn("lease lookup failed", "task", taskID, "error", err)
		return ""
	}
	if lease == nil {
		return ""
	}
	if err := c.rt.ReleaseLease(taskID, lease.AgentID); err != nil && !errors.Is(err, errors.ErrNoActiveLease) {
		c.log.Warn("lease not released", "task", taskID, "agent", lease.AgentID, "error", err)
	}
	return lease.AgentID
}

// VerifyResult is the outcome of Verify. Unblocked lists the tasks that
// became claimable because this verification satisfied their last
// unverified dependency.
type VerifyResult struct {
	Task      *spec.Task
	Unblocked []string
}

// Verify confirms a done task and releases any lease still live on it.
func (c *Coordinator) Verify(taskID, agentID string) (*VerifyResult, error) {
	result := &VerifyResult{}
	_, err := c.specs.Update(func(doc *spec.Spec) error {
		before := claimableSet(doc)
		task, err := doc.Verify(taskID)
		if err != nil {
			return err
		}
		result.Task = task
		for _, t := range doc.ClaimableTasks() {
			if !before[t.ID] {
				result.Unblocked = append(result.Unblocked, t.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.releaseAnyLease(taskID)
	c.event(runtime.EventVerify, agentID, taskID, "")
	c.log.Info("task verified", "task", taskID, "agent", agentID, "unblocked", len(result.Unblocked))
	return result, nil
}

func claimableSet(doc *spec.Spec) map[string]bool {
	set := make(map[string]bool)
	for _, t := range doc.ClaimableTasks() {
		set[t.ID] = true
	}
	return set
}

// CreateTask adds a task to the graph.
func (c *Coordinator) CreateTask(p spec.CreateTaskParams) (*spec.Task, error) {
	if p.IDPrefix == "" {
		p.IDPrefix = c.cfg.Spec.TaskIDPrefix
	}
	var task *spec.Task
	_, err := c.specs.Update(func(doc *spec.Spec) error {
		var err error
		task, err = doc.CreateTask(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("task created", "task", task.ID, "title", task.Title)
	return task, nil
}

// UpdateTask applies a partial update.
func (c *Coordinator) UpdateTask(taskID string, p spec.UpdateTaskParams) (*spec.Task, error) {
	var task *spec.Task
	_, err := c.specs.Update(func(doc *spec.Spec) error {
		var err error
		task, err = doc.UpdateTask(taskID, p)
		return err
	})
	return task, err
}

// DeleteTask soft-deletes a task (and, with cascade, its dependents),
// then force-expires any live leases on the deleted tasks.
func (c *Coordinator) DeleteTask(taskID string, cascade bool) ([]string, error) {
	var deleted []string
	_, err := c.specs.Update(func(doc *spec.Spec) error {
		var err error
		deleted, err = doc.DeleteTask(taskID, cascade)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, id := range deleted {
		c.releaseAnyLease(id)
	}
	c.event(runtime.EventDelete, "", taskID, fmt.Sprintf("cascade=%v count=%d", cascade, len(deleted)))
	return deleted, nil
}

// ClaimableTasks returns claimable tasks that also have no live lease,
// in claim order.
func (c *Coordinator) ClaimableTasks() ([]*spec.Task, error) {
	doc, err := c.specs.Load()
	if err != nil {
		return nil, err
	}
	var open []*spec.Task
	for _, task := range doc.ClaimableTasks() {
		lease, err := c.rt.ActiveLease(task.ID)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			open = append(open, task)
		}
	}
	return open, nil
}

// JoinAgent registers (or re-registers) an agent.
func (c *Coordinator) JoinAgent(p runtime.JoinParams) (*runtime.Agent, error) {
	agent, err := c.rt.Join(p)
	if err != nil {
		return nil, err
	}
	c.event(runtime.EventJoin, agent.ID, "", agent.Name)
	c.log.Info("agent joined", "agent", agent.ID, "name", agent.Name)
	return agent, nil
}

// SendMessage validates the recipient against both planes and persists
// the message. Agent recipients must be registered; task recipients must
// exist in the graph.
func (c *Coordinator) SendMessage(m *runtime.Message) (*runtime.Message, error) {
	if m.ToAgent != "" {
		if _, err := c.rt.GetAgent(m.ToAgent); err != nil {
			return nil, err
		}
	}
	if m.TaskID != "" {
		doc, err := c.specs.Load()
		if err != nil {
			return nil, err
		}
		if doc.GetTask(m.TaskID) == nil {
			return nil, errors.NewNotFoundError("task", m.TaskID)
		}
	}
	sent, err := c.rt.SendMessage(m)
	if err != nil {
		return nil, err
	}
	c.event(runtime.EventMessage, m.FromAgent, m.TaskID, fmt.Sprintf("id=%s severity=%s", sent.ID, sent.Severity))
	return sent, nil
}

// WaitForMessage blocks until the agent has unread messages or ctx ends.
func (c *Coordinator) WaitForMessage(ctx context.Context, agentID string) ([]*runtime.Message, error) {
	return c.rt.WaitForMessage(ctx, agentID)
}

// CleanupOrphans expires live leases held by unregistered agents.
func (c *Coordinator) CleanupOrphans() (int, error) {
	n, err := c.rt.ExpireOrphanedLeases()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.event(runtime.EventCleanup, "", "", fmt.Sprintf("expired=%d", n))
		c.log.Info("orphaned leases expired", "count", n)
	}
	return n, nil
}

// Stats is a snapshot across both planes.
type Stats struct {
	Project      string
	TaskCounts   map[spec.Status]int
	Claimable    int
	ActiveLeases int
	Agents       int
	Messages     int
	Summary      string
}

// CollectStats gathers the stats snapshot.
func (c *Coordinator) CollectStats() (*Stats, error) {
	doc, err := c.specs.Load()
	if err != nil {
		return nil, err
	}
	open, err := c.ClaimableTasks()
	if err != nil {
		return nil, err
	}
	leases, err := c.rt.ActiveLeases()
	if err != nil {
		return nil, err
	}
	agents, err := c.rt.ListAgents()
	if err != nil {
		return nil, err
	}
	messages, err := c.rt.MessageCount()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Project:      doc.Project.Name,
		TaskCounts:   doc.StatusCounts(),
		Claimable:    len(open),
		ActiveLeases: len(leases),
		Agents:       len(agents),
		Messages:     messages,
		Summary:      doc.Summary(),
	}, nil
}
