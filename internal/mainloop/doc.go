// Package mainloop provides a single-threaded execution context to which
// other goroutines can post work, the way a UI thread accepts callbacks.
package mainloop
