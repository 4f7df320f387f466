package reconciler

import (
	"fmt"
	"strings"

	"inet.af/netaddr"
)

// Instance is the parsed form of a session's "inst" descriptor, for example
// "client.4512 v1:10.0.0.7:0/123456789".
type Instance struct {
	ClientID   string
	Address    string
	Identifier string
}

// ParseInstance splits an instance descriptor into client id, endpoint
// address and session nonce.
func ParseInstance(inst string) (Instance, error) {
	fields := strings.Fields(inst)
	if len(fields) != 2 {
		return Instance{}, fmt.Errorf("instance %q: expected \"<name> <address>\"", inst)
	}
	name, addr := fields[0], fields[1]

	clientID := name[strings.LastIndex(name, ".")+1:]
	if clientID == "" {
		return Instance{}, fmt.Errorf("instance %q: empty client id", inst)
	}

	slash := strings.LastIndex(addr, "/")
	if slash < 0 || slash == len(addr)-1 {
		return Instance{}, fmt.Errorf("instance %q: missing nonce", inst)
	}
	hostPort, identifier := addr[:slash], addr[slash+1:]

	address, err := parseEndpoint(hostPort)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %q: %w", inst, err)
	}

	return Instance{
		ClientID:   clientID,
		Address:    address,
		Identifier: identifier,
	}, nil
}

// parseEndpoint extracts the host from "[proto:]host:port". IP hosts are
// returned in canonical form.
func parseEndpoint(hostPort string) (string, error) {
	for _, proto := range []string{"v1:", "v2:", "any:"} {
		hostPort = strings.TrimPrefix(hostPort, proto)
	}
	if ipp, err := netaddr.ParseIPPort(hostPort); err == nil {
		return ipp.IP().String(), nil
	}

	parts := strings.Split(hostPort, ":")
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("malformed endpoint %q", hostPort)
	}
	return parts[len(parts)-2], nil
}

// sameAddress compares two endpoint addresses, treating equivalent IP
// spellings as equal.
func sameAddress(a, b string) bool {
	if a == b {
		return true
	}
	ipa, erra := netaddr.ParseIP(a)
	ipb, errb := netaddr.ParseIP(b)
	if erra != nil || errb != nil {
		return false
	}
	return ipa.Unmap() == ipb.Unmap()
}
