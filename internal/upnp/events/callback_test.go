package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestParsePropertySet(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property>
    <TransportState>PLAYING</TransportState>
  </e:property>
  <e:property>
    <CurrentTrack>3</CurrentTrack>
  </e:property>
</e:propertyset>`)

	properties := ParsePropertySet(payload)
	require.Equal(t, map[string]string{
		"TransportState": "PLAYING",
		"CurrentTrack":   "3",
	}, properties)
}

func TestParsePropertySetKeepsEmbeddedXMLRaw(t *testing.T) {
	payload := []byte(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property>
    <LastChange>&lt;Event&gt;&lt;InstanceID val="0"/&gt;&lt;/Event&gt;</LastChange>
  </e:property>
</e:propertyset>`)

	properties := ParsePropertySet(payload)
	require.Equal(t, `<Event><InstanceID val="0"/></Event>`, properties["LastChange"])
}

func TestParsePropertySetTolerantOfGarbage(t *testing.T) {
	require.Empty(t, ParsePropertySet([]byte("not xml at all")))
	require.Empty(t, ParsePropertySet(nil))
}

func TestNotifyIngress(t *testing.T) {
	var gotDevice, gotService string
	var gotProperties map[string]string
	manager := NewManager(300, 30, func(device, service string, properties map[string]string) {
		gotDevice, gotService = device, service
		gotProperties = properties
	})

	router := chi.NewRouter()
	RegisterRoutes(router, manager)
	server := httptest.NewServer(router)
	defer server.Close()

	body := `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property><Volume>42</Volume></e:property>
</e:propertyset>`
	req, err := http.NewRequest("NOTIFY", server.URL+"/upnpevents/streamer/AVTransport", strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "streamer", gotDevice)
	require.Equal(t, "AVTransport", gotService)
	require.Equal(t, map[string]string{"Volume": "42"}, gotProperties)

	// Later notifies merge into the retained snapshot.
	snapshot := manager.Properties()
	require.Equal(t, "42", snapshot["streamer/AVTransport"]["Volume"])
}
