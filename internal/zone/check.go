package zone

import (
	"fmt"
	"os"

	"github.com/miekg/dns"
)

// CheckDB parses a zone database file and verifies it carries an SOA
// record for the zone apex. It returns the number of records read.
func CheckDB(path, zone string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open zone file %s: %w", path, err)
	}
	defer f.Close()

	origin := dns.Fqdn(zone)
	zp := dns.NewZoneParser(f, origin, path)

	count := 0
	hasSOA := false
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		count++
		if soa, isSOA := rr.(*dns.SOA); isSOA && dns.CanonicalName(soa.Hdr.Name) == dns.CanonicalName(origin) {
			hasSOA = true
		}
	}
	if err := zp.Err(); err != nil {
		return count, fmt.Errorf("invalid zone file %s: %w", path, err)
	}

	if !hasSOA {
		return count, fmt.Errorf("zone file %s has no SOA record for %s", path, origin)
	}

	return count, nil
}
