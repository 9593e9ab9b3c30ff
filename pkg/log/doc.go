/*
Package log provides structured logging for agent-core using zerolog.

The package wraps a single global zerolog.Logger, initialized once via
Init, plus a handful of constructors for child loggers carrying
request-scoped context (a component name, a node id, a resource
kind/id pair). Callers hold onto the returned zerolog.Logger rather
than calling back into this package per log line.

# Initialization

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true, // false selects a human-readable console writer
		Output:     os.Stdout,
	})

cmd/agent-core wires the level and format from CLI flags and calls
Init before constructing the registry or starting the HTTP server, so
every subsequently created component logger inherits the configured
level and writer.

# Component loggers

Each long-lived subsystem that logs takes a child logger at
construction time rather than using the package-level Logger directly:

	pkg/handlers.Handlers   log.WithComponent("handlers")
	pkg/reconciler.Reconciler  log.WithComponent("reconciler")
	pkg/nodepoll.Poller     log.WithComponent("nodepoll")
	cmd/agent-core          log.WithComponent("main")

The reconciler additionally scopes a logger per dirty spec it resolves,
via WithResourceID("Replica", id) / WithResourceID("Nexus", id) /
WithResourceID("Pool", id), so every log line from one reconcile
attempt carries that spec's kind and id without repeating
.Str("resource", ...) at every call site.

# Usage

	r.logger.Info().Int("resolved", fixed).Msg("reconciliation pass resolved dirty specs")

	logger := log.WithResourceID("Replica", string(rep.ID))
	_, err = r.reg.Replicas.CompleteCreate(ctx, string(rep.ID), se)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve dirty replica spec, will retry next pass")
	} else {
		logger.Debug().Msg("resolved dirty replica spec")
	}

Error returns from svcerr carry their Kind and Resource as part of the
error value, so logger.Error().Err(err) surfaces them via zerolog's
standard "error" field rather than needing separate fields.

# Levels

Debug is for per-attempt detail in the reconciler that would be noise
at steady state (one line per resolved dirty spec); Info covers
lifecycle events (reconciler start and stop, a completed reconcile
pass, server startup and shutdown); Warn is for a degraded but
non-fatal condition observed from outside the process (the node poller
marking a node unreachable); Error is a failed operation that the
caller is about to retry or surface to its own caller. Fatal is not
used: a startup failure in cmd/agent-core (such as failing to open the
store) is returned as an error and main exits with status 1.
*/
package log
