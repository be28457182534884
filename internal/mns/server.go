package mns

import (
	"bytes"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mnsd/internal/eventreport"
	"mnsd/internal/obex"
)

// obexServer is the MNS OBEX profile handler for one session: it accepts a
// CONNECT aimed at the MNS target and turns event-report PUTs into
// Dispatch calls.
type obexServer struct {
	dispatcher Dispatcher
	log        zerolog.Logger
	events     *atomic.Int64
}

func (s *obexServer) OnConnect(hdrs obex.Headers) (obex.ResponseCode, obex.Headers) {
	target, ok := hdrs.Get(obex.HeaderTarget)
	if !ok || !bytes.Equal(target, TargetUUID[:]) {
		s.log.Warn().Hex("target", target).Msg("connect with unexpected target")
		return obex.RespNotAcceptable, nil
	}
	s.log.Debug().Msg("obex connect")
	return obex.RespSuccess, obex.Headers{obex.BytesHeader(obex.HeaderWho, TargetUUID[:])}
}

func (s *obexServer) OnPut(req *obex.Request) obex.ResponseCode {
	if typ := req.Headers.Text(obex.HeaderType); typ != eventreport.MIMEType {
		s.log.Warn().Str("type", typ).Msg("put with unexpected type")
		return obex.RespBadRequest
	}
	instanceID := 0
	if raw, ok := req.Headers.Get(obex.HeaderAppParams); ok {
		params, err := obex.ParseAppParams(raw)
		if err != nil {
			s.log.Warn().Err(err).Msg("bad application parameters")
			return obex.RespBadRequest
		}
		if v, ok := params[appParamMASInstanceID]; ok && len(v) == 1 {
			instanceID = int(v[0])
		}
	}
	report, err := eventreport.Parse(instanceID, req.Body)
	if err != nil {
		s.log.Warn().Err(err).Int("instance", instanceID).Msg("undecodable event report")
		return obex.RespNotAcceptable
	}
	s.events.Add(1)
	s.dispatcher.Dispatch(instanceID, report)
	return obex.RespSuccess
}

func (s *obexServer) OnDisconnect() {
	s.log.Debug().Msg("obex disconnect")
}
