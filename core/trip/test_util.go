package trip

// NewServiceMock returns a Service that sends pickup notifications synchronously.
func NewServiceMock(deps Deps) Service {
	svc := newService(deps)
	svc.spawn = func(fn func()) { fn() } // run synchronously
	return svc
}
