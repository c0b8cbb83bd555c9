package cache

import "time"

// NoOp is the Cache used when Config.CacheURL is empty: every Get misses,
// every Set/Delete/Invalidate* is a no-op. orchestrator.Orchestrator
// treats this identically to a real cache's miss path — the store is
// always hit directly.
type NoOp struct{}

func (NoOp) Get(string) ([]byte, bool)            { return nil, false }
func (NoOp) Set(string, []byte, time.Duration)    {}
func (NoOp) Delete(string)                        {}
func (NoOp) InvalidateUserInstallations(string)   {}
func (NoOp) InvalidateManifest(string, string)    {}
func (NoOp) InvalidateSharedContext(string)       {}

var _ Cache = NoOp{}
