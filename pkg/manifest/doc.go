/*
Package manifest keeps the dispatcher's client registry in sync with a YAML
file.

A manifest lists clients by name and kind:

	clients:
	  - name: audit
	    kind: sql
	    driver: postgres
	    dsn: ${AUDIT_DSN}
	  - name: stream
	    kind: redis
	    url: redis://localhost:6379/0
	  - name: errors
	    kind: otel

The Builder turns each ClientSpec into a client. The Reconciler applies a
manifest: it builds only new or changed specs, registers them in one batch,
unregisters what disappeared and closes retired instances. The Watcher
reloads the file on change (fsnotify) and on a cron resync schedule.

An invalid manifest or a failed build leaves the registry untouched.
*/
package manifest
