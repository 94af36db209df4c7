package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vibin-audio/vibin-go/internal/amplifier"
	"github.com/vibin-audio/vibin-go/internal/api"
	"github.com/vibin-audio/vibin-go/internal/config"
	"github.com/vibin-audio/vibin-go/internal/db"
	"github.com/vibin-audio/vibin-go/internal/discovery"
	"github.com/vibin-audio/vibin-go/internal/external"
	"github.com/vibin-audio/vibin-go/internal/favorites"
	"github.com/vibin-audio/vibin-go/internal/hub"
	"github.com/vibin-audio/vibin-go/internal/mediaserver"
	"github.com/vibin-audio/vibin-go/internal/model"
	"github.com/vibin-audio/vibin-go/internal/playlists"
	"github.com/vibin-audio/vibin-go/internal/streamer"
	"github.com/vibin-audio/vibin-go/internal/system"
	"github.com/vibin-audio/vibin-go/internal/upnp/events"
	"github.com/vibin-audio/vibin-go/internal/upnp/soap"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.status, time.Since(start).Round(time.Millisecond))
	})
}

// NewHandler discovers the devices, builds the adapters and the hub, and
// returns the HTTP handler plus a shutdown function. A startup error means
// the process should exit nonzero.
func NewHandler(cfg config.Config) (http.Handler, func(context.Context) error, error) {
	log.Printf("Using database: %s", cfg.DBPath)
	dbPair, err := db.Init(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	discoveryCtx, cancelDiscovery := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelDiscovery()

	resolver := discovery.NewResolver(time.Duration(cfg.DiscoveryTimeoutSec) * time.Second)
	streamerDevice, err := resolver.ResolveStreamer(discoveryCtx, cfg.Streamer)
	if err != nil {
		dbPair.Close()
		return nil, nil, err
	}
	if _, err := discovery.ClassifyStreamer(streamerDevice); err != nil {
		dbPair.Close()
		return nil, nil, err
	}
	log.Printf("DISCOVERY: streamer: %s (%s)", streamerDevice.FriendlyName, streamerDevice.ModelName)

	mediaDevice, err := resolver.ResolveMediaServer(discoveryCtx, cfg.MediaServer, streamerDevice)
	if err != nil {
		dbPair.Close()
		return nil, nil, err
	}

	h := hub.New()

	var mediaSvc *mediaserver.Service
	if mediaDevice != nil {
		if _, err := discovery.ClassifyMediaServer(mediaDevice); err != nil {
			dbPair.Close()
			return nil, nil, err
		}
		soapClient := soap.NewClient(time.Duration(cfg.StreamerTimeoutMs) * time.Millisecond)
		mediaSvc, err = mediaserver.NewService(mediaDevice, soapClient, mediaserver.Paths{
			AllAlbums:  cfg.AllAlbumsPath,
			NewAlbums:  cfg.NewAlbumsPath,
			AllArtists: cfg.AllArtistsPath,
		})
		if err != nil {
			dbPair.Close()
			return nil, nil, err
		}
		log.Printf("DISCOVERY: media server: %s (%s)", mediaDevice.FriendlyName, mediaDevice.ModelName)
	} else {
		log.Printf("DISCOVERY: no media server; catalog features disabled")
	}

	var mediaSource streamer.MediaSource
	if mediaSvc != nil {
		mediaSource = mediaSvc
	}
	streamerSvc := streamer.NewService(streamerDevice, mediaSource, h.Publish,
		time.Duration(cfg.StreamerTimeoutMs)*time.Millisecond)

	var amp amplifier.Amplifier
	switch cfg.AmplifierType {
	case "hegel":
		amp = amplifier.NewHegel(cfg.Amplifier, h.Publish)
	case "streammagic":
		amp = amplifier.NewStreamMagic(cfg.Amplifier, h.Publish)
	}

	var eventsManager *events.Manager
	eventsManager = events.NewManager(cfg.UPnPSubscriptionTimeoutSec, cfg.UPnPRenewalBufferSec,
		func(device, service string, properties map[string]string) {
			h.Publish(model.UpdateUPnPProperties, eventsManager.Properties())
		})

	playlistRepo := playlists.NewRepository(dbPair)
	reconciler := playlists.NewReconciler(playlistRepo, streamerSvc, h.Publish)

	// The first queue refresh after connect is the startup state, not a live
	// mutation; match it against the store instead of treating it as drift.
	var startupCheck sync.Once
	streamerSvc.SetQueueObserver(func(queue model.Queue) {
		initial := false
		startupCheck.Do(func() {
			reconciler.CheckOnStartup()
			initial = true
		})
		if !initial {
			reconciler.OnStreamerQueueModified(queue)
		}
	})

	var mediaResolver favorites.MediaResolver
	if mediaSvc != nil {
		mediaResolver = mediaSvc
	}
	favoritesSvc := favorites.NewService(favorites.NewRepository(dbPair), mediaResolver, h.Publish)

	var lyricsProvider external.LyricsProvider
	if cfg.GeniusAccessToken != "" {
		lyricsProvider = external.NewGeniusProvider(cfg.GeniusAccessToken)
	}
	var linksProviders []external.LinksProvider
	if cfg.DiscogsAccessToken != "" {
		linksProviders = append(linksProviders, external.NewDiscogsProvider(cfg.DiscogsAccessToken))
	}
	externalSvc := external.NewService(dbPair, mediaSvc, lyricsProvider, linksProviders)

	h.Bind(hub.Bindings{
		Streamer:    streamerSvc,
		MediaServer: mediaSvc,
		Amplifier:   amp,
		Reconciler:  reconciler,
		Favorites:   favoritesSvc,
		Events:      eventsManager,
	})

	systemSvc := system.NewService(dbPair, h, mediaSvc)

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)

	streamer.RegisterRoutes(router, streamerSvc)
	mediaserver.RegisterRoutes(router, mediaSvc)
	playlists.RegisterRoutes(router, reconciler)
	favorites.RegisterRoutes(router, favoritesSvc)
	external.RegisterRoutes(router, externalSvc)
	amplifier.RegisterRoutes(router, amp)
	hub.RegisterRoutes(router, h)
	system.RegisterRoutes(router, systemSvc)
	events.RegisterRoutes(router, eventsManager)

	pruner := db.NewPruner(dbPair, 90)
	if err := pruner.Start(); err != nil {
		dbPair.Close()
		return nil, nil, err
	}

	streamerSvc.Start()
	if amp != nil {
		amp.Start()
	}

	if err := eventsManager.Start(cfg.Port); err != nil {
		log.Printf("UPNP: event manager disabled: %v", err)
	} else {
		subscribeDeviceEvents(eventsManager, streamerDevice, "streamer")
		if mediaDevice != nil {
			subscribeDeviceEvents(eventsManager, mediaDevice, "media_server")
		}
	}

	shutdown := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		eventsManager.Stop(ctx)
		streamerSvc.Stop()
		if amp != nil {
			amp.Stop()
		}
		pruner.Stop()
		return dbPair.Close()
	}

	return router, shutdown, nil
}

// subscribeDeviceEvents subscribes to every evented service on a device.
func subscribeDeviceEvents(manager *events.Manager, device *discovery.Device, name string) {
	for serviceName, service := range device.Services {
		if service.EventSubURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := manager.Subscribe(ctx, name, serviceName, service.EventSubURL); err != nil {
			log.Printf("UPNP: subscribe %s on %s failed: %v", serviceName, name, err)
		}
		cancel()
	}
}
