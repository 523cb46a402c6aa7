package pumpsim

import (
	"context"
	"errors"
	"net"

	"github.com/backkem/pumpx2/pkg/discovery"
	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/transport"
)

// ServeListener accepts relay connections on ln and serves the pump over
// each in turn, as a network BLE bridge in front of a pump would. It returns
// when ctx is done or ln fails.
func (p *Pump) ServeListener(ctx context.Context, ln net.Listener, cfg transport.BridgeConfig) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if p.log != nil {
			p.log.Infof("relay client %s connected", conn.RemoteAddr())
		}

		br := transport.NewBridgeConn(conn, cfg)
		err = p.Serve(ctx, br)
		br.Close()
		if err != nil && !errors.Is(err, transport.ErrDisconnected) {
			return err
		}
		if p.log != nil {
			p.log.Infof("relay client %s disconnected", conn.RemoteAddr())
		}
	}
}

// Advertise publishes the pump's relay on mDNS with its serial, model and
// BLE service. The caller stops the returned advertiser.
func (p *Pump) Advertise(cfg discovery.AdvertiserConfig) (*discovery.Advertiser, error) {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = p.config.LoggerFactory
	}
	adv, err := discovery.NewAdvertiser(cfg)
	if err != nil {
		return nil, err
	}
	if err := adv.Start(discovery.BridgeTXT{
		Serial:  p.config.Serial,
		Model:   p.config.Model,
		Service: message.ServiceUUID,
	}); err != nil {
		return nil, err
	}
	return adv, nil
}

// Serial returns the pump's serial number.
func (p *Pump) Serial() string {
	return p.config.Serial
}
