// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package engine

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xtaci/rtps/config"
	"github.com/xtaci/rtps/discovery"
	"github.com/xtaci/rtps/endpoint"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/metrics"
	"github.com/xtaci/rtps/transport"
	"github.com/xtaci/rtps/wire"
)

// Participant is one running RTPS domain participant: the four sockets
// spec §6's port formula assigns it, Discovery's three built-in
// endpoint pairs, and every local Writer/Reader the façade has created
// on it (spec §3's Participant type).
//
// Every Writer/Reader, proxy, and HistoryCache is touched from exactly
// one goroutine (the EventLoop, see eventloop.go); Discovery runs on a
// second goroutine (discovery_loop.go) and hands the EventLoop match
// and lease-expiry notices over buffered channels instead of sharing
// locks (spec §9 REDESIGN FLAGS 1 and 4).
type Participant struct {
	cfg    config.EngineConfig
	prefix guid.GuidPrefix
	log    *logrus.Entry
	met    *metrics.Metrics

	spdpMulticast transport.Transport
	spdpUnicast   transport.Transport
	userMulticast transport.Transport
	userUnicast   transport.Transport

	defaultUnicastLocators   []wire.Locator
	defaultMulticastLocators []wire.Locator
	metatrafficUnicast       []wire.Locator
	metatrafficMulticast     []wire.Locator

	db *discovery.DB
	pm *discovery.ParticipantMessage

	sender     *multiSender
	metaSender *multiSender

	el   *eventLoop
	disc *discoveryLoop

	events chan StatusEvent

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New binds a participant's sockets, stands up Discovery, and starts
// its EventLoop and Discovery goroutines. ifaceName selects the NIC to
// bind and multicast-join, mirroring the teacher's single-listen-socket
// setup (server/main.go) generalized to this module's four sockets.
func New(cfg config.EngineConfig, ifaceName string, log *logrus.Entry, met *metrics.Metrics) (*Participant, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if met == nil {
		met = metrics.NewNoop()
	}

	prefix, err := guid.NewPrefix()
	if err != nil {
		return nil, errors.Wrap(err, "engine: generate guid prefix")
	}

	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: resolve interface %s", ifaceName)
	}
	a, b, c, d, err := localIPv4(iface)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: no IPv4 address on %s", ifaceName)
	}

	domain := int(cfg.DomainID)
	participantID, err := transport.PickParticipantID(func(id int) error {
		t, err := transport.Bind(transport.SPDPUnicastPort(domain, id), iface)
		if err != nil {
			return err
		}
		return t.Close()
	})
	if err != nil {
		return nil, errors.Wrap(err, "engine: pick participant id")
	}

	spdpMC, err := transport.Bind(transport.SPDPMulticastPort(domain), iface)
	if err != nil {
		return nil, errors.Wrap(err, "engine: bind spdp multicast")
	}
	if err := spdpMC.JoinMulticast(transport.MulticastGroup); err != nil {
		return nil, errors.Wrap(err, "engine: join spdp multicast group")
	}
	spdpUC, err := transport.Bind(transport.SPDPUnicastPort(domain, participantID), iface)
	if err != nil {
		return nil, errors.Wrap(err, "engine: bind spdp unicast")
	}
	userMC, err := transport.Bind(transport.UserMulticastPort(domain), iface)
	if err != nil {
		return nil, errors.Wrap(err, "engine: bind user multicast")
	}
	if err := userMC.JoinMulticast(transport.MulticastGroup); err != nil {
		return nil, errors.Wrap(err, "engine: join user multicast group")
	}
	userUC, err := transport.Bind(transport.UserUnicastPort(domain, participantID), iface)
	if err != nil {
		return nil, errors.Wrap(err, "engine: bind user unicast")
	}

	defaultUnicast := []wire.Locator{wire.NewUDPv4Locator(a, b, c, d, uint32(transport.UserUnicastPort(domain, participantID)))}
	defaultMulticast := []wire.Locator{wire.NewUDPv4Locator(239, 255, 0, 1, uint32(transport.UserMulticastPort(domain)))}
	metaUnicast := []wire.Locator{wire.NewUDPv4Locator(a, b, c, d, uint32(transport.SPDPUnicastPort(domain, participantID)))}
	metaMulticast := []wire.Locator{wire.NewUDPv4Locator(239, 255, 0, 1, uint32(transport.SPDPMulticastPort(domain)))}

	plog := log.WithFields(logrus.Fields{"participant": prefix.String(), "domain": domain})

	db := discovery.NewDB()
	self := discovery.SPDPdiscoveredParticipantData{
		DomainID:                       cfg.DomainID,
		DomainTag:                      cfg.DomainTag,
		ProtocolVersion:                wire.CurrentProtocolVersion,
		GUID:                           guid.New(prefix, guid.EntityIDParticipant),
		VendorID:                       guid.VendorIDThis,
		AvailableBuiltinEndpoints:      discovery.DefaultBuiltinEndpoints,
		MetatrafficUnicastLocatorList:  metaUnicast,
		MetatrafficMulticastLocatorList: metaMulticast,
		DefaultUnicastLocatorList:      defaultUnicast,
		DefaultMulticastLocatorList:    defaultMulticast,
		LeaseDuration:                  cfg.ParticipantLease,
	}

	p := &Participant{
		cfg:                      cfg,
		prefix:                   prefix,
		log:                      plog,
		met:                      met,
		spdpMulticast:            spdpMC,
		spdpUnicast:              spdpUC,
		userMulticast:            userMC,
		userUnicast:              userUC,
		defaultUnicastLocators:   defaultUnicast,
		defaultMulticastLocators: defaultMulticast,
		metatrafficUnicast:       metaUnicast,
		metatrafficMulticast:     metaMulticast,
		db:                       db,
		pm:                       discovery.NewParticipantMessage(db, prefix, plog),
		sender:                   &multiSender{unicast: userUC, multicast: userMC, log: plog},
		metaSender:               &multiSender{unicast: spdpUC, multicast: spdpMC, log: plog},
		events:                   make(chan StatusEvent, 64),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	p.group = group

	p.el = newEventLoop(p)
	p.disc = newDiscoveryLoop(p, discovery.NewSPDP(db, cfg.DomainID, self, plog), discovery.NewSEDP(plog))

	group.Go(func() error { return p.el.run(gctx) })
	group.Go(func() error { return p.disc.run(gctx) })

	return p, nil
}

// localIPv4 picks the first IPv4 address bound to iface, the address
// this participant advertises in its own locator lists.
func localIPv4(iface *net.Interface) (a, b, c, d byte, err error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4[0], ip4[1], ip4[2], ip4[3], nil
		}
	}
	return 0, 0, 0, 0, errors.Errorf("interface %s has no IPv4 address", iface.Name)
}

// Prefix returns this participant's GuidPrefix, which the façade
// combines with an EntityId to build the GUID a new Writer/Reader's
// Ingredients must carry.
func (p *Participant) Prefix() guid.GuidPrefix { return p.prefix }

// Events returns the channel the façade reads status notifications
// from (spec §6's Façade contract).
func (p *Participant) Events() <-chan StatusEvent { return p.events }

// postEvent is a non-blocking send so a slow or absent façade reader
// never stalls the EventLoop or Discovery goroutine.
func (p *Participant) postEvent(ev StatusEvent) {
	select {
	case p.events <- ev:
	default:
		p.log.WithField("kind", ev.Kind.String()).Warn("engine: dropping status event, façade not reading")
	}
}

// CreateWriter installs a local Writer and returns it, advertising it
// via SEDP on the Discovery goroutine. Blocks until the EventLoop has
// installed the Writer so the returned value is immediately usable.
func (p *Participant) CreateWriter(req WriterRequest) (*endpoint.Writer, error) {
	result := make(chan *endpoint.Writer, 1)
	p.el.submit(func() {
		result <- p.el.createWriter(req)
	})
	w := <-result
	p.disc.submit(func() {
		p.disc.announceWriter(w.GUID(), req)
	})
	return w, nil
}

// CreateReader is CreateWriter's Reader analogue.
func (p *Participant) CreateReader(req ReaderRequest) (*endpoint.Reader, error) {
	result := make(chan *endpoint.Reader, 1)
	p.el.submit(func() {
		result <- p.el.createReader(req)
	})
	r := <-result
	p.disc.submit(func() {
		p.disc.announceReader(r.GUID(), req)
	})
	return r, nil
}

// Write publishes payload on the local writer identified by writerGUID,
// returning its assigned sequence number. now stamps the CacheChange's
// source timestamp (spec §4.5). A Write also counts as this writer's
// manual liveliness assertion (spec §3).
func (p *Participant) Write(writerGUID guid.GUID, payload *wire.SerializedPayload, now wire.Timestamp) (wire.SequenceNumber, error) {
	type result struct {
		sn wire.SequenceNumber
		ok bool
	}
	out := make(chan result, 1)
	p.el.submit(func() {
		sn, ok := p.el.write(writerGUID, payload, now)
		out <- result{sn, ok}
	})
	r := <-out
	if !r.ok {
		return 0, errors.Errorf("engine: no local writer with guid %s", writerGUID)
	}
	return r.sn, nil
}

// Close stops both goroutines and releases every bound socket.
func (p *Participant) Close() error {
	p.cancel()
	_ = p.group.Wait()
	p.spdpMulticast.Close()
	p.spdpUnicast.Close()
	p.userMulticast.Close()
	p.userUnicast.Close()
	close(p.events)
	return nil
}
