package adb

import "strings"

// dispatcher holds the ordered service-prefix registry consulted on every
// OPEN. Routes are matched top-to-bottom; the first prefix match wins, so
// more specific prefixes (e.g. "sync:") must be registered before any
// catch-all that might also match.
type dispatcher struct {
	routes []serviceRoute
}

// newDispatcher builds the fixed registry for the services this daemon
// understands: shell (one-shot and interactive), exec (always one-shot),
// sync (file transfer), and logcat (log tail).
func newDispatcher(backend Backend, cfg *Config, logger Logger) *dispatcher {
	d := &dispatcher{}
	var metrics Metrics
	if cfg != nil {
		metrics = cfg.Metrics()
	}
	d.register("exec:", func(service string, sender Sender) (Handler, error) {
		cmd := strings.TrimPrefix(service, "exec:")
		return newOneShotShell(backend, cmd, sender, metrics), nil
	})
	d.register("shell:", func(service string, sender Sender) (Handler, error) {
		cmd := strings.TrimPrefix(service, "shell:")
		if cmd == "" {
			return newInteractiveShell(backend, sender, metrics), nil
		}
		return newOneShotShell(backend, cmd, sender, metrics), nil
	})
	d.register("sync:", func(service string, sender Sender) (Handler, error) {
		return newSyncStream(backend, cfg, sender), nil
	})
	d.register("logcat", func(service string, sender Sender) (Handler, error) {
		return newLogcatStream(backend, cfg, sender), nil
	})
	return d
}

// register appends a route to the end of the registry, in registration order.
func (d *dispatcher) register(prefix string, factory Factory) {
	d.routes = append(d.routes, serviceRoute{prefix: prefix, factory: factory})
}

// Resolve finds the first route whose prefix matches service and builds
// its handler. It reports ok=false when no route matches, which the
// transport turns into a CLSE(0, remote-id) reply.
func (d *dispatcher) Resolve(service string, sender Sender) (Handler, bool, error) {
	for _, route := range d.routes {
		if strings.HasPrefix(service, route.prefix) {
			h, err := route.factory(service, sender)
			return h, true, err
		}
	}
	return nil, false, nil
}
