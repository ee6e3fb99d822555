// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guda is the CPU device runtime used to validate and benchmark
// block-cooperative kernels.
//
// A launch is a grid of blocks. Blocks are scheduled across a bounded set
// of workers with no ordering between them; the threads of one block run
// as goroutines at the same time, share the block's memory, and meet at
// SyncThreads. Launches are queued on a stream and complete in issue order;
// Synchronize joins them and reports the first kernel fault, which stays
// sticky for the life of the context.
//
// Every failing operation returns an error carrying a Status. Wrap calls in
// Check to record where they were made.
package guda
