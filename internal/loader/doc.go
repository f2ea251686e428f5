// Package loader decodes image thumbnails in the background.
//
// A Loader owns a fixed number of worker goroutines that take work items from
// a shared TaskQueue, decode them and hand the bitmap to the item's callback,
// either directly on the worker or by posting it to a single-threaded
// mainloop.Executor. Pending items can be reprioritised or cancelled, and the
// pool can be stopped and later restarted by the next submission.
package loader
