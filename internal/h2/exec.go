package h2

// Exec runs background work for a connection: its own shutdown watcher,
// request body pipes and response deliveries. Execute must not block.
type Exec interface {
	Execute(fn func())
}

// GoExec runs every task on its own goroutine.
type GoExec struct{}

func (GoExec) Execute(fn func()) {
	go fn()
}
