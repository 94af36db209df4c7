package events

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// chi only routes methods it knows about; GENA NOTIFY has to be taught.
func init() {
	chi.RegisterMethod("NOTIFY")
}

// RegisterRoutes wires the NOTIFY ingress endpoint. UPnP devices deliver
// evented state changes here.
func RegisterRoutes(router chi.Router, manager *Manager) {
	router.Method("NOTIFY", "/upnpevents/{device}/{service}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := chi.URLParam(r, "device")
		service := chi.URLParam(r, "service")

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		properties := ParsePropertySet(body)
		if len(properties) > 0 {
			manager.HandleNotify(device, service, properties)
		}

		w.WriteHeader(http.StatusOK)
	}))
}

// ParsePropertySet parses a GENA <e:propertyset> body into variable name to
// value pairs. Values that are themselves XML documents (LastChange and
// friends) are kept as raw strings.
func ParsePropertySet(payload []byte) map[string]string {
	decoder := xml.NewDecoder(strings.NewReader(string(payload)))
	properties := make(map[string]string)

	inProperty := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "property":
				inProperty = true
			case inProperty:
				var value string
				if err := decoder.DecodeElement(&value, &se); err == nil {
					properties[se.Name.Local] = strings.TrimSpace(value)
				}
				inProperty = false
			}
		case xml.EndElement:
			if se.Name.Local == "property" {
				inProperty = false
			}
		}
	}

	return properties
}
