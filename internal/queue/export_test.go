// AngelaMos | 2026
// export_test.go

package queue

import "time"

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }
