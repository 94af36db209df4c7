package model

// UpdateMessageType names one broadcast state channel. The set is closed;
// subscribers treat each message as a self-contained announcement for its
// channel.
type UpdateMessageType string

const (
	UpdateSystem           UpdateMessageType = "System"
	UpdateUPnPProperties   UpdateMessageType = "UPnPProperties"
	UpdateTransportState   UpdateMessageType = "TransportState"
	UpdatePosition         UpdateMessageType = "Position"
	UpdateCurrentlyPlaying UpdateMessageType = "CurrentlyPlaying"
	UpdateQueue            UpdateMessageType = "Queue"
	UpdateFavorites        UpdateMessageType = "Favorites"
	UpdatePresets          UpdateMessageType = "Presets"
	UpdateStoredPlaylists  UpdateMessageType = "StoredPlaylists"
	UpdateDeviceDisplay    UpdateMessageType = "DeviceDisplay"
	UpdatePlayState        UpdateMessageType = "PlayState"
	UpdateVibinStatus      UpdateMessageType = "VibinStatus"
)

// PublishFunc is how adapters hand a normalized state change to the hub.
type PublishFunc func(messageType UpdateMessageType, payload any)
