// Package internal contains integration tests that verify the two planes
// work together: graph mutations through the spec store, claims and
// messages through the runtime store, all driven via the coordinator.
package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-works/beacon/internal/config"
	"github.com/beacon-works/beacon/internal/coordination"
	"github.com/beacon-works/beacon/internal/errors"
	"github.com/beacon-works/beacon/internal/logging"
	"github.com/beacon-works/beacon/internal/runtime"
	"github.com/beacon-works/beacon/internal/spec"
	"github.com/beacon-works/beacon/internal/workspace"
)

func newWorkspace(t *testing.T) *coordination.Coordinator {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	_, err = spec.NewStore(ws.SpecPath()).CreateDefault("integration")
	require.NoError(t, err)

	coord, err := coordination.New(ws, config.Default(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { coord.Close() })
	return coord
}

// TestTwoAgentPipeline walks the full lifecycle: two tasks in a chain,
// two agents, claim through verify, with the dependent task unlocking
// only after verification.
func TestTwoAgentPipeline(t *testing.T) {
	coord := newWorkspace(t)

	builder, err := coord.JoinAgent(runtime.JoinParams{Name: "builder", Role: "worker", Capabilities: []string{"go"}})
	require.NoError(t, err)
	reviewer, err := coord.JoinAgent(runtime.JoinParams{Name: "reviewer", Role: "reviewer"})
	require.NoError(t, err)

	schema, err := coord.CreateTask(spec.CreateTaskParams{Title: "design schema", Status: "ready"})
	require.NoError(t, err)
	api, err := coord.CreateTask(spec.CreateTaskParams{Title: "build api", Status: "ready", DependsOn: []string{schema.ID}})
	require.NoError(t, err)

	// Only the schema task is claimable at the start.
	claim, err := coord.Claim("", builder.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, claim.Task.ID)

	// The dependent task is explicitly refused while the dep is unmet.
	_, err = coord.Claim(api.ID, reviewer.ID, 0, false)
	var nc *errors.NotClaimableError
	require.ErrorAs(t, err, &nc)

	_, err = coord.MarkDone(schema.ID, builder.ID)
	require.NoError(t, err)
	_, err = coord.Verify(schema.ID, reviewer.ID)
	require.NoError(t, err)

	// Verified dep unlocks the api task; the builder hands off via the
	// task thread and the reviewer picks it up.
	_, err = coord.SendMessage(&runtime.Message{
		FromAgent: builder.ID, TaskID: api.ID,
		Subject: "schema notes", Severity: runtime.SeverityHandoff,
	})
	require.NoError(t, err)

	claim, err = coord.Claim("", reviewer.ID, 0, false)
	require.NoError(t, err)
	assert.Equal(t, api.ID, claim.Task.ID)

	thread, err := coord.Runtime().TaskThread(api.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, runtime.SeverityHandoff, thread[0].Severity)
}

// TestLeaseHandoffAfterRelease verifies that a released claim frees the
// task for another agent while the spec document stays untouched.
func TestLeaseHandoffAfterRelease(t *testing.T) {
	coord := newWorkspace(t)

	a1, err := coord.JoinAgent(runtime.JoinParams{Name: "first"})
	require.NoError(t, err)
	a2, err := coord.JoinAgent(runtime.JoinParams{Name: "second"})
	require.NoError(t, err)

	task, err := coord.CreateTask(spec.CreateTaskParams{Title: "flaky work", Status: "ready"})
	require.NoError(t, err)

	_, err = coord.Claim(task.ID, a1.ID, time.Minute, false)
	require.NoError(t, err)
	require.NoError(t, coord.Release(task.ID, a1.ID))

	claim, err := coord.Claim(task.ID, a2.ID, time.Minute, false)
	require.NoError(t, err)
	assert.Equal(t, a2.ID, claim.Lease.AgentID)

	doc, err := coord.Specs().Load()
	require.NoError(t, err)
	assert.Equal(t, spec.StatusReady, doc.GetTask(task.ID).Status, "claims never touch graph status")
}

// TestAuditTrail verifies that coordination operations land events.
func TestAuditTrail(t *testing.T) {
	coord := newWorkspace(t)

	agent, err := coord.JoinAgent(runtime.JoinParams{Name: "builder"})
	require.NoError(t, err)
	task, err := coord.CreateTask(spec.CreateTaskParams{Title: "work", Status: "ready"})
	require.NoError(t, err)

	_, err = coord.Claim(task.ID, agent.ID, 0, false)
	require.NoError(t, err)
	_, err = coord.MarkDone(task.ID, agent.ID)
	require.NoError(t, err)

	events, err := coord.Runtime().ListEvents(0)
	require.NoError(t, err)

	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, runtime.EventJoin)
	assert.Contains(t, kinds, runtime.EventClaim)
	assert.Contains(t, kinds, runtime.EventDone)
}
