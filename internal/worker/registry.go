package worker

import "context"

// TaskFunc handles one picked-up work item, identified by job id.
type TaskFunc func(ctx context.Context, jobID string)

// Registry maps work-item task names to handlers. Handlers are registered
// once at worker startup, so an unresolvable dispatch target is a startup
// bug rather than a runtime surprise.
type Registry struct {
	tasks map[string]TaskFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]TaskFunc)}
}

// Register binds a task name to its handler.
func (r *Registry) Register(name string, fn TaskFunc) {
	r.tasks[name] = fn
}

// Resolve returns the handler for a task name, or nil.
func (r *Registry) Resolve(name string) TaskFunc {
	return r.tasks[name]
}

// Tasks returns the registered task names.
func (r *Registry) Tasks() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	return names
}
