package peer

import (
	"fmt"

	"github.com/miekg/dns"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// DiscoverSeedsDNS resolves a DNS SRV seed name (e.g.
// "_peers._tcp.seed.example.com") into a list of "host:port" peer
// addresses, an optional enrichment to a statically configured peer list
// (§6 configuration options). It is a thin convenience: failures here are
// never fatal to the daemon, which always has the statically configured
// peer list to fall back to.
func DiscoverSeedsDNS(resolver, seedName string) ([]string, error) {
	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(seedName), dns.TypeSRV)

	resp, _, err := c.Exchange(m, resolver)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, errs.Newf(errs.KindNetwork, "peer: DNS SRV lookup of %s returned rcode %d", seedName, resp.Rcode)
	}

	seeds := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		seeds = append(seeds, fmt.Sprintf("%s:%d", dns.Fqdn(srv.Target), srv.Port))
	}
	return seeds, nil
}
