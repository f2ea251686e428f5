// Package thumb defines the image references the loader decodes.
//
// An Image is identified by an explicit Key derived from its full-size resource
// URI; two references with the same Key are the same image for queuing and
// deduplication purposes. FileImage is the file-backed implementation used by
// the command line tool.
package thumb
