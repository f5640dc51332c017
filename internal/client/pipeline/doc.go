// Package pipeline is the single funnel for every call to the remote service.
//
// Each call begins a progress indication, attaches the session credential,
// dispatches, and classifies the outcome (response envelope first, then
// transport status) into a *domain.Error with a display-ready message.
// An authentication failure invokes the injected ExpiryHandler before the
// call returns; no other failure changes session state.
package pipeline
