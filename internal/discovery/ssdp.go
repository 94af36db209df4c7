package discovery

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"
)

const ssdpAddr = "239.255.255.250:1900"

// Search targets for the device kinds we care about.
const (
	TargetMediaRenderer = "urn:schemas-upnp-org:device:MediaRenderer:1"
	TargetMediaServer   = "urn:schemas-upnp-org:device:MediaServer:1"
)

// SSDPResponse is one M-SEARCH responder, deduplicated by USN.
type SSDPResponse struct {
	Location string
	USN      string
	ST       string
	Headers  map[string]string
	FromIP   string
}

// Search performs an SSDP M-SEARCH for the given target and collects
// responses until the timeout elapses.
func Search(ctx context.Context, target string, timeout time.Duration) ([]SSDPResponse, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil, err
	}

	if err := sendSearch(conn, addr, target); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	responses := make(map[string]SSDPResponse)
	buf := make([]byte, 2048)
	for {
		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return mapToSlice(responses), err
		}

		resp := parseSSDPResponse(string(buf[:n]))
		if resp.Location == "" || resp.USN == "" {
			continue
		}
		resp.FromIP = raddr.String()

		// Deduplicate by USN
		if _, exists := responses[resp.USN]; !exists {
			responses[resp.USN] = resp
		}
	}

	return mapToSlice(responses), nil
}

func sendSearch(conn net.PacketConn, addr *net.UDPAddr, target string) error {
	msg := strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + ssdpAddr,
		"MAN: \"ssdp:discover\"",
		"MX: 2",
		"ST: " + target,
		"",
		"",
	}, "\r\n")

	_, err := conn.WriteTo([]byte(msg), addr)
	return err
}

func parseSSDPResponse(raw string) SSDPResponse {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	headers := make(map[string]string)

	// Skip status line
	if scanner.Scan() {
		// no-op
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		headers[key] = value
	}

	return SSDPResponse{
		Location: headers["LOCATION"],
		USN:      headers["USN"],
		ST:       headers["ST"],
		Headers:  headers,
	}
}

func mapToSlice(responses map[string]SSDPResponse) []SSDPResponse {
	result := make([]SSDPResponse, 0, len(responses))
	for _, r := range responses {
		result = append(result, r)
	}
	return result
}
