package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskQueueFor(t *testing.T) {
	assert.Equal(t, QueueHigh, TaskQueueFor(6))
	assert.Equal(t, QueueDefault, TaskQueueFor(5))
	assert.Equal(t, QueueDefault, TaskQueueFor(0))
	assert.Equal(t, QueueLow, TaskQueueFor(-1))
}

func TestMapExecutionStatus(t *testing.T) {
	assert.Equal(t, StatusStarted, MapExecutionStatus(int32(engineStatusRunning)))
	assert.Equal(t, StatusFinished, MapExecutionStatus(int32(engineStatusCompleted)))
	assert.Equal(t, StatusFailed, MapExecutionStatus(int32(engineStatusFailed)))
	assert.Equal(t, StatusFailed, MapExecutionStatus(int32(engineStatusTimedOut)))
	assert.Equal(t, StatusCancelled, MapExecutionStatus(int32(engineStatusCanceled)))
	assert.Equal(t, StatusDeferred, MapExecutionStatus(int32(engineStatusContinuedAsNew)))
	assert.Equal(t, StatusQueued, MapExecutionStatus(int32(engineStatusUnspecified)))
}
