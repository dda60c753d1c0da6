// AngelaMos | 2026
// export_test.go

package campaign

import "time"

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetDiscoverer(d Discoverer) { s.discoverer = d }
