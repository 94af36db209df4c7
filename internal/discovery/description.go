package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Service is one UPnP service on a device, with absolute URLs.
type Service struct {
	ID          string
	Type        string
	ControlURL  string
	EventSubURL string
}

// Device is a resolved UPnP device handle.
type Device struct {
	UDN            string
	FriendlyName   string
	Manufacturer   string
	ModelName      string
	ModelNumber    string
	DeviceType     string
	DescriptionURL string
	// Host is the device's hostname or IP without port.
	Host string
	// Services is keyed by the short service name ("ContentDirectory",
	// "AVTransport", ...), root and embedded devices merged.
	Services map[string]Service
}

// Service returns the named service, if the device exposes it.
func (d *Device) Service(name string) (Service, bool) {
	svc, ok := d.Services[name]
	return svc, ok
}

// httpClient is shared with sane timeouts so unreachable devices fail fast.
var httpClient = &http.Client{
	Timeout: 10 * time.Second,
}

// deviceDescription mirrors the UPnP device description document.
type deviceDescription struct {
	URLBase string     `xml:"URLBase"`
	Device  deviceElem `xml:"device"`
}

type deviceElem struct {
	DeviceType   string        `xml:"deviceType"`
	FriendlyName string        `xml:"friendlyName"`
	Manufacturer string        `xml:"manufacturer"`
	ModelName    string        `xml:"modelName"`
	ModelNumber  string        `xml:"modelNumber"`
	UDN          string        `xml:"UDN"`
	Services     []serviceElem `xml:"serviceList>service"`
	Devices      []deviceElem  `xml:"deviceList>device"`
}

type serviceElem struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// LoadDescription fetches and parses a UPnP device description document.
func LoadDescription(ctx context.Context, descriptionURL string) (*Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descriptionURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("device description %s: http %d", descriptionURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return ParseDescription(body, descriptionURL)
}

// ParseDescription parses a device description document. Relative service
// URLs are resolved against URLBase, or the description URL when URLBase is
// absent.
func ParseDescription(payload []byte, descriptionURL string) (*Device, error) {
	var doc deviceDescription
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse device description: %w", err)
	}

	base := strings.TrimSpace(doc.URLBase)
	if base == "" {
		base = descriptionURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	device := &Device{
		UDN:            strings.TrimPrefix(strings.TrimSpace(doc.Device.UDN), "uuid:"),
		FriendlyName:   strings.TrimSpace(doc.Device.FriendlyName),
		Manufacturer:   strings.TrimSpace(doc.Device.Manufacturer),
		ModelName:      strings.TrimSpace(doc.Device.ModelName),
		ModelNumber:    strings.TrimSpace(doc.Device.ModelNumber),
		DeviceType:     strings.TrimSpace(doc.Device.DeviceType),
		DescriptionURL: descriptionURL,
		Host:           baseURL.Hostname(),
		Services:       make(map[string]Service),
	}

	collectServices(device, doc.Device, baseURL)
	return device, nil
}

// collectServices walks the root device and its embedded devices, keeping
// the first occurrence of each short service name.
func collectServices(device *Device, elem deviceElem, base *url.URL) {
	for _, svc := range elem.Services {
		name := shortServiceName(svc.ServiceType)
		if name == "" {
			continue
		}
		if _, exists := device.Services[name]; exists {
			continue
		}
		device.Services[name] = Service{
			ID:          strings.TrimSpace(svc.ServiceID),
			Type:        strings.TrimSpace(svc.ServiceType),
			ControlURL:  resolveURL(base, svc.ControlURL),
			EventSubURL: resolveURL(base, svc.EventSubURL),
		}
	}
	for _, embedded := range elem.Devices {
		collectServices(device, embedded, base)
	}
}

// shortServiceName extracts "ContentDirectory" from
// "urn:schemas-upnp-org:service:ContentDirectory:1".
func shortServiceName(serviceType string) string {
	parts := strings.Split(serviceType, ":")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
