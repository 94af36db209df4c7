package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// smoipUPnPResponse mirrors the StreamMagic /smoip/system/upnp payload: the
// UPnP devices visible to the streamer itself.
type smoipUPnPResponse struct {
	Data struct {
		Devices []SMOIPDevice `json:"devices"`
	} `json:"data"`
}

// SMOIPDevice is one device entry reported by a StreamMagic streamer.
type SMOIPDevice struct {
	Name           string `json:"name"`
	UDN            string `json:"udn"`
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model"`
	DescriptionURL string `json:"description_url"`
}

// ProbeSMOIP asks a host for its StreamMagic UPnP device listing. Any
// failure (non-Cambridge host, timeout, bad JSON) is returned as an error so
// the caller can fall back to SSDP.
func ProbeSMOIP(ctx context.Context, host string) ([]SMOIPDevice, error) {
	probeURL := fmt.Sprintf("http://%s/smoip/system/upnp", host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probe %s: http %d", probeURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed smoipUPnPResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("probe %s: %w", probeURL, err)
	}
	if len(parsed.Data.Devices) == 0 {
		return nil, fmt.Errorf("probe %s: no devices reported", probeURL)
	}

	return parsed.Data.Devices, nil
}

// findSelf picks the streamer's own entry from its SMOIP device listing: the
// Cambridge Audio device with a description URL.
func findSelf(devices []SMOIPDevice) (SMOIPDevice, bool) {
	for _, device := range devices {
		if strings.EqualFold(device.Manufacturer, cambridgeManufacturer) && device.DescriptionURL != "" {
			return device, true
		}
	}
	return SMOIPDevice{}, false
}
