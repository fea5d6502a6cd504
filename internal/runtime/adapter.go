package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// Submission is the input to Submit (spec §4.5's `submit(name, parameters,
// priority)`).
type Submission struct {
	Name       string
	Parameters any
	Priority   int
	// ExecutionTimeout bounds the whole workflow run; zero uses the engine
	// default.
	ExecutionTimeout time.Duration
}

// Adapter wraps a Temporal client with the submission/status/cancellation
// contract of spec §4.5. It depends only on the client.Client interface, so
// tests can substitute a fake.
type Adapter struct {
	engine client.Client
}

func NewAdapter(engine client.Client) *Adapter {
	return &Adapter{engine: engine}
}

// Submit generates a stable, unique workflow id `<name>-<uuid>`, routes to a
// task queue by priority, and starts the workflow with reject-duplicate reuse
// policy (spec §4.4's workflow-engine client contract).
func (a *Adapter) Submit(ctx context.Context, s Submission) (string, error) {
	id := fmt.Sprintf("%s-%s", s.Name, uuid.NewString())
	opts := client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                TaskQueueFor(s.Priority),
		WorkflowExecutionTimeout: s.ExecutionTimeout,
		WorkflowIDReusePolicy:    client.WorkflowIDReusePolicyRejectDuplicate,
	}
	run, err := a.engine.ExecuteWorkflow(ctx, opts, s.Name, s.Parameters)
	if err != nil {
		return "", apperrors.Upstream("starting workflow "+s.Name, err)
	}
	return run.GetID(), nil
}

// Status maps a running workflow's engine status onto the adapter's status
// vocabulary.
func (a *Adapter) Status(ctx context.Context, workflowID string) (Status, error) {
	desc, err := a.engine.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return "", apperrors.Upstream("describing workflow "+workflowID, err)
	}
	info := desc.GetWorkflowExecutionInfo()
	if info == nil {
		return StatusQueued, nil
	}
	return MapExecutionStatus(int32(info.GetStatus())), nil
}

// Cancel requests cooperative cancellation of a running workflow.
func (a *Adapter) Cancel(ctx context.Context, workflowID string) error {
	if err := a.engine.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return apperrors.Upstream("cancelling workflow "+workflowID, err)
	}
	return nil
}

// AwaitResult blocks until the workflow completes and decodes its result
// into out.
func (a *Adapter) AwaitResult(ctx context.Context, workflowID string, out any) error {
	run := a.engine.GetWorkflow(ctx, workflowID, "")
	if err := run.Get(ctx, out); err != nil {
		return apperrors.Upstream("awaiting workflow "+workflowID, err)
	}
	return nil
}
