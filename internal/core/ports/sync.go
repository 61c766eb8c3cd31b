package ports

import "synccode/internal/core/domain"

// SharedMap is the narrow capability interface onto the external replicated
// key-value substrate: last-writer-wins per key, every participant observes
// every change. Exactly read, write, subscribe; nothing else.
type SharedMap interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Subscribe(fn func(key, value string)) (unsubscribe func())
}

// ResultLog is the separately replicated, append-only log of completed
// execution results. Late joiners replay the whole log instead of
// reconstructing history from transitions they happened to observe.
type ResultLog interface {
	Append(result domain.ExecutionResult)
	Entries() []domain.ExecutionResult
	Subscribe(fn func(result domain.ExecutionResult)) (unsubscribe func())
}
