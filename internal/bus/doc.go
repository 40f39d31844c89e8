// Package bus carries the typed command and message traffic between the
// network control core and its callers. Commands form a sealed union
// dispatched by the core; messages are notifications fanned out to any
// number of subscribers without ever blocking the publisher.
package bus
