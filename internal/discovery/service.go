package discovery

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
)

const cambridgeManufacturer = "Cambridge Audio"

// AdapterKind names the adapter implementation a resolved device maps to.
type AdapterKind string

const (
	AdapterStreamMagic AdapterKind = "streammagic"
	AdapterAssetUPnP   AdapterKind = "assetupnp"
)

// streamerModels maps known streamer model names to their adapter. Unknown
// models fall back to manufacturer matching.
var streamerModels = map[string]AdapterKind{
	"CXNv2":   AdapterStreamMagic,
	"CXN100":  AdapterStreamMagic,
	"851N":    AdapterStreamMagic,
	"Edge NQ": AdapterStreamMagic,
	"EVO 75":  AdapterStreamMagic,
	"EVO 150": AdapterStreamMagic,
	"MXN10":   AdapterStreamMagic,
}

// Resolver locates the streamer and media server per the configured
// specifiers. It performs no retries; callers decide startup policy.
type Resolver struct {
	timeout time.Duration
}

// NewResolver creates a resolver with the given SSDP timeout.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{timeout: timeout}
}

// ResolveStreamer locates the streamer device. specifier may be empty (SSDP
// discovery), a URL (treated as the UPnP description URL), or a hostname /
// friendly name.
func (r *Resolver) ResolveStreamer(ctx context.Context, specifier string) (*Device, error) {
	specifier = strings.TrimSpace(specifier)

	if specifier == "" {
		device, err := r.ssdpFind(ctx, TargetMediaRenderer, func(d *Device) bool {
			return strings.EqualFold(d.Manufacturer, cambridgeManufacturer) &&
				strings.Contains(d.DeviceType, "MediaRenderer")
		})
		if err != nil {
			return nil, err
		}
		if device == nil {
			return nil, apperrors.NewNotFoundError("Could not find streamer on the network", nil)
		}
		return device, nil
	}

	if isURL(specifier) {
		device, err := LoadDescription(ctx, specifier)
		if err != nil {
			return nil, apperrors.NewDeviceError("could not load streamer description from "+specifier, nil)
		}
		return device, nil
	}

	// Hostname or friendly name: try the SMOIP probe first, fall back to
	// SSDP friendly-name matching.
	if devices, err := ProbeSMOIP(ctx, specifier); err == nil {
		if self, ok := findSelf(devices); ok {
			device, err := LoadDescription(ctx, self.DescriptionURL)
			if err == nil {
				return device, nil
			}
			log.Printf("DISCOVERY: probe found %s but description load failed: %v", self.DescriptionURL, err)
		}
	}

	device, err := r.ssdpFind(ctx, TargetMediaRenderer, func(d *Device) bool {
		return strings.EqualFold(d.FriendlyName, specifier)
	})
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NewNotFoundError("Could not find streamer matching '"+specifier+"'", nil)
	}
	return device, nil
}

// ResolveMediaServer locates the optional media server. With an empty
// specifier and a Cambridge-branded streamer, the streamer is asked which
// media server it is using. A nil device with nil error means no media
// server; features degrade but startup proceeds.
func (r *Resolver) ResolveMediaServer(ctx context.Context, specifier string, streamer *Device) (*Device, error) {
	specifier = strings.TrimSpace(specifier)

	if specifier == "" {
		if streamer == nil || !strings.EqualFold(streamer.Manufacturer, cambridgeManufacturer) {
			return nil, nil
		}
		devices, err := ProbeSMOIP(ctx, streamer.Host)
		if err != nil {
			log.Printf("DISCOVERY: streamer media-server probe failed: %v", err)
			return nil, nil
		}
		for _, entry := range devices {
			if entry.DescriptionURL == "" {
				continue
			}
			device, err := LoadDescription(ctx, entry.DescriptionURL)
			if err != nil {
				continue
			}
			if strings.Contains(device.DeviceType, "MediaServer") {
				return device, nil
			}
		}
		return nil, nil
	}

	if isURL(specifier) {
		device, err := LoadDescription(ctx, specifier)
		if err != nil {
			return nil, apperrors.NewDeviceError("could not load media server description from "+specifier, nil)
		}
		return device, nil
	}

	device, err := r.ssdpFind(ctx, TargetMediaServer, func(d *Device) bool {
		return strings.EqualFold(d.FriendlyName, specifier)
	})
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NewNotFoundError("Could not find media server matching '"+specifier+"'", nil)
	}
	return device, nil
}

// ClassifyStreamer maps a resolved streamer to its adapter implementation.
func ClassifyStreamer(device *Device) (AdapterKind, error) {
	if kind, ok := streamerModels[device.ModelName]; ok {
		return kind, nil
	}
	if strings.EqualFold(device.Manufacturer, cambridgeManufacturer) {
		log.Printf("DISCOVERY: unknown model %q, matching by manufacturer", device.ModelName)
		return AdapterStreamMagic, nil
	}
	return "", apperrors.NewDeviceError("no streamer adapter for model "+device.ModelName, nil)
}

// ClassifyMediaServer maps a resolved media server to its adapter
// implementation. Anything that speaks ContentDirectory is handled by the
// Asset UPnP adapter.
func ClassifyMediaServer(device *Device) (AdapterKind, error) {
	if _, ok := device.Service("ContentDirectory"); !ok {
		return "", apperrors.NewDeviceError("media server "+device.FriendlyName+" exposes no ContentDirectory", nil)
	}
	if !strings.Contains(device.ModelName, "Asset") {
		log.Printf("DISCOVERY: media server model %q, using Asset UPnP adapter", device.ModelName)
	}
	return AdapterAssetUPnP, nil
}

// ssdpFind searches and returns the first responder whose loaded description
// satisfies match.
func (r *Resolver) ssdpFind(ctx context.Context, target string, match func(*Device) bool) (*Device, error) {
	responses, err := Search(ctx, target, r.timeout)
	if err != nil && len(responses) == 0 {
		return nil, apperrors.NewDeviceError("SSDP search failed: "+err.Error(), nil)
	}

	for _, resp := range responses {
		device, err := LoadDescription(ctx, resp.Location)
		if err != nil {
			log.Printf("DISCOVERY: skipping %s: %v", resp.Location, err)
			continue
		}
		if match(device) {
			return device, nil
		}
	}
	return nil, nil
}

func isURL(specifier string) bool {
	return strings.HasPrefix(specifier, "http://") || strings.HasPrefix(specifier, "https://")
}
