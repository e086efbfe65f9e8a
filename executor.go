package h2conn

import (
	"golang.org/x/sync/errgroup"

	"github.com/imroc/h2conn/internal/h2"
)

// Executor runs the background work of a connection: the shutdown watcher,
// request body pipes and response deliveries. Execute must not block.
type Executor = h2.Exec

// GoExecutor runs every task on a new goroutine. It is the default.
type GoExecutor = h2.GoExec

// GroupExecutor runs tasks on goroutines and can wait for all of them,
// which is handy to make sure nothing outlives a connection.
type GroupExecutor struct {
	g errgroup.Group
}

// NewGroupExecutor returns an empty GroupExecutor.
func NewGroupExecutor() *GroupExecutor {
	return &GroupExecutor{}
}

func (e *GroupExecutor) Execute(fn func()) {
	e.g.Go(func() error {
		fn()
		return nil
	})
}

// Wait blocks until every task started so far has returned.
func (e *GroupExecutor) Wait() {
	e.g.Wait()
}
