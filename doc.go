/*
MIT License

Copyright (c) 2026 The Sockring Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package sockring implements a handle-based socket runtime with a
// buffered byte-stream facade on top of it.
//
// Sockets are identified by an opaque, generation-tagged Handle rather
// than a pointer or a raw file descriptor: looking up a stale handle
// after the underlying slot has been reused and reassigned fails
// instead of silently resolving to the wrong socket. Every socket owns
// a pair of fixed-capacity ring buffers and advances through a small
// connection state machine (NotConnected, Connecting, Connected,
// Listening, Disconnected) as reads, writes and polls observe the
// underlying transport.
//
// The package is not an event loop. It is a passive library: callers
// drive it from their own threads, optionally polling state or letting
// read/write opportunistically touch the OS.
package sockring
