// Package events provides the lifecycle events the thumbnail loader publishes.
//
// The loader emits an event each time a decode request changes state (queued,
// coalesced, promoted, cancelled, decoded, delivered, dropped). Observers such
// as statistics collectors subscribe without the loader knowing about them.
//
// The primary components are:
// - Event: a single lifecycle transition of one image
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
