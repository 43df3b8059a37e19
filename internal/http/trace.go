package http

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"
)

// phaseTimer collects connection phase timings from httptrace callbacks.
// The dialer may race IPv4 and IPv6 connects in separate goroutines, and a
// losing dial can report after the response arrived, so every field is
// guarded by mu and only the first successful connect is kept.
type phaseTimer struct {
	mu sync.Mutex

	timing TimingInfo

	dnsStart          time.Time
	connectStarts     map[string]time.Time
	tlsHandshakeStart time.Time

	dnsDone      bool
	connectDone  bool
	lastPhaseEnd time.Time
}

func newPhaseTimer(start time.Time) *phaseTimer {
	return &phaseTimer{
		timing:        TimingInfo{StartTime: start},
		connectStarts: make(map[string]time.Time),
		lastPhaseEnd:  start,
	}
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { p.dnsStarted(time.Now()) },
		DNSDone:              func(httptrace.DNSDoneInfo) { p.dnsFinished(time.Now()) },
		ConnectStart:         func(network, addr string) { p.connectStarted(network+"/"+addr, time.Now()) },
		ConnectDone:          func(network, addr string, err error) { p.connectFinished(network+"/"+addr, err, time.Now()) },
		TLSHandshakeStart:    func() { p.tlsStarted(time.Now()) },
		TLSHandshakeDone:     func(_ tls.ConnectionState, err error) { p.tlsFinished(err, time.Now()) },
		GotFirstResponseByte: func() { p.firstByte(time.Now()) },
	}
}

func (p *phaseTimer) dnsStarted(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dnsStart = now
}

func (p *phaseTimer) dnsFinished(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timing.DNSLookupTime = now.Sub(p.dnsStart)
	p.dnsDone = true
	p.lastPhaseEnd = now
}

func (p *phaseTimer) connectStarted(key string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectStarts[key] = now
}

func (p *phaseTimer) connectFinished(key string, err error, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.connectStarts[key]
	if err != nil || !ok || p.connectDone {
		return
	}
	p.timing.TCPConnectTime = now.Sub(start)
	p.connectDone = true
	p.lastPhaseEnd = now
}

func (p *phaseTimer) tlsStarted(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectDone || p.dnsDone {
		p.tlsHandshakeStart = now
	}
}

func (p *phaseTimer) tlsFinished(err error, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil && !p.tlsHandshakeStart.IsZero() {
		p.timing.TLSHandshakeTime = now.Sub(p.tlsHandshakeStart)
		p.lastPhaseEnd = now
	}
}

func (p *phaseTimer) firstByte(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timing.TimeToFirstByte = now.Sub(p.lastPhaseEnd)
}

// snapshot returns a copy of the timings collected so far.
func (p *phaseTimer) snapshot() TimingInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timing
}
