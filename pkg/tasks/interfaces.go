package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer is the part of asynq.Client the control API needs to queue a
// manual pass.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
