// Package core contains the outbound messaging contracts, the dispatcher
// service and the deferred job model. Provider and transport adapters depend
// on this package; core must not depend on provider-specific adapters.
package core
