// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"log-agent/internal/pipeline/ingest"
)

type countingPuller struct {
	calls atomic.Int32
	err   error
}

func (c *countingPuller) PullAndSave(ctx context.Context) (ingest.Report, error) {
	c.calls.Add(1)
	return ingest.Report{Ingested: 1}, c.err
}

func TestPoller_PullsImmediatelyAndOnTick(t *testing.T) {
	p := &countingPuller{}
	poller := NewPoller("w1", p, 10*time.Millisecond, nil)
	poller.Start(context.Background())

	deadline := time.After(time.Second)
	for p.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 pulls, got %d", p.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	poller.Stop()
	n := p.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := p.calls.Load(); got != n {
		t.Fatalf("pulls continued after Stop: %d -> %d", n, got)
	}
	poller.Stop()
}

func TestPoller_ErrorDoesNotStopLoop(t *testing.T) {
	p := &countingPuller{err: errors.New("throttled")}
	ctx, cancel := context.WithCancel(context.Background())
	poller := NewPoller("w1", p, 5*time.Millisecond, nil)
	poller.Start(ctx)

	deadline := time.After(time.Second)
	for p.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop stopped after error")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop blocked after context cancel")
	}
}
