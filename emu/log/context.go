package log

import "sync"

// A Context adds fields to every log entry, whatever its module. Entries can
// be written from any goroutine, so must AddLogContext.
type Context interface {
	AddLogContext(z *EntryZ)
}

var (
	ctxmu    sync.RWMutex
	contexts []Context
)

// AddContext registers a global log context.
func AddContext(ctx Context) {
	ctxmu.Lock()
	defer ctxmu.Unlock()
	contexts = append(contexts, ctx)
}

// RemoveContext unregisters a log context previously added with AddContext.
func RemoveContext(ctx Context) {
	ctxmu.Lock()
	defer ctxmu.Unlock()
	for i, c := range contexts {
		if c == ctx {
			contexts = append(contexts[:i:i], contexts[i+1:]...)
			return
		}
	}
}
