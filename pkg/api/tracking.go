package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gridwork/hubcap/pkg/analytics"
	"github.com/gridwork/hubcap/pkg/async"
)

// trackDeviceView records a device view event without blocking the response.
func (s *Server) trackDeviceView(r *http.Request, device *Device) {
	event := analytics.DeviceViewEvent{
		DeviceID:   device.ID,
		CategoryID: device.CategoryID,
		Source:     "api",
		Referrer:   r.Referer(),
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	async.SafeGo(context.Background(), 5*time.Second, "device view analytics", func(ctx context.Context) error {
		return s.eventTracker.TrackDeviceView(ctx, event)
	})
}
