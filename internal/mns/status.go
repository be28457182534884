package mns

import (
	"time"

	"mnsd/pkg/types"
)

var startTime = time.Now()

// Acceptors returns one entry per configured transport kind, in
// configuration order. Kinds without a live acceptor report StateIdle.
func (s *Service) Acceptors() []AcceptorInfo {
	out := make([]AcceptorInfo, 0, len(s.transports))
	for _, t := range s.transports {
		if a := s.acceptor(t.Kind()); a != nil {
			out = append(out, a.info())
			continue
		}
		out = append(out, AcceptorInfo{Kind: t.Kind(), State: StateIdle, Addr: t.Addr()})
	}
	return out
}

// Instances returns the registered instance ids in ascending order.
func (s *Service) Instances() []int { return s.reg.IDs() }

// Ready reports whether at least one acceptor is listening.
func (s *Service) Ready() bool {
	for _, ai := range s.Acceptors() {
		if ai.State == StateListening {
			return true
		}
	}
	return false
}

// Status builds a detailed status response for /status.
func (s *Service) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Instances:      s.reg.IDs(),
		ServiceUUID:    ServiceUUID.String(),
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	for _, ai := range s.Acceptors() {
		as := types.AcceptorStatus{
			Kind:     string(ai.Kind),
			State:    string(ai.State),
			Addr:     ai.Addr,
			Accepted: ai.Accepted,
		}
		if ai.Session != nil {
			as.Session = &types.SessionStatus{
				ID:         ai.Session.ID,
				Remote:     ai.Session.Remote,
				OpenedUnix: ai.Session.Opened.Unix(),
				Events:     ai.Session.Events,
			}
		}
		resp.Acceptors = append(resp.Acceptors, as)
	}
	return resp
}
