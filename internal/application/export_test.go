package application

import "time"

// SetNow overrides the clock used by the service.
func (s *BuildService) SetNow(now func() time.Time) { s.nowFunc = now }

// SetNow overrides the clock used by the service.
func (s *ReconcileService) SetNow(now func() time.Time) { s.nowFunc = now }

// SetNow overrides the clock used by the service.
func (s *PullRequestService) SetNow(now func() time.Time) { s.nowFunc = now }
