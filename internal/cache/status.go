package cache

import (
	"context"
	"time"
)

// PartitionStatus describes one cache partition for the health surface.
type PartitionStatus struct {
	Populated   bool       `json:"populated"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Expired     bool       `json:"expired"`
}

// Status reports both partitions without mutating anything.
type Status struct {
	Slow PartitionStatus `json:"slow"`
	Fast PartitionStatus `json:"fast"`
}

// Status returns the current staleness picture of both partitions.
func (c *TieredCache) Status(ctx context.Context) Status {
	now := c.cfg.Now()
	var st Status

	if slow := c.loadSlow(ctx); slow != nil {
		t := slow.LastRefresh
		st.Slow = PartitionStatus{
			Populated:   true,
			LastRefresh: &t,
			Expired:     c.slowExpired(t, now),
		}
	} else {
		st.Slow = PartitionStatus{Expired: true}
	}

	if fast := c.loadFast(ctx); fast != nil {
		t := fast.LastRefresh
		st.Fast = PartitionStatus{
			Populated:   true,
			LastRefresh: &t,
			Expired:     c.fastExpired(t, now),
		}
	} else {
		st.Fast = PartitionStatus{Expired: true}
	}

	return st
}
