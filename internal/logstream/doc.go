// Package logstream fans one log stream out to many consumers.
//
// A Broadcaster keeps at most one source per key open. The first Subscribe
// for a key opens the source; later subscribers share it. Every subscriber
// has its own buffered channel, and a subscriber that falls behind loses
// lines rather than slowing the others down. When the last subscriber
// detaches the source is closed. When the source ends, every subscriber's
// channel is closed and the next Subscribe opens a fresh source.
package logstream
