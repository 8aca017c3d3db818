package settings

import "maps"

// Feature names the per-tenant settings documents. Each has a typed
// document, documented defaults and a sparse patch with an explicit
// merge. Capacity and format limits are restricted to elevated
// operators; tenant admins control visibility toggles and content.
type Feature string

const (
	FeatureRSVP           Feature = "RSVP"
	FeatureGifts          Feature = "GIFTS"
	FeatureMusic          Feature = "MUSIC"
	FeatureHeroBackground Feature = "HERO_BACKGROUND"
	FeatureQRCodeHub      Feature = "QRCODE_HUB"
	FeatureParking        Feature = "PARKING"
	FeatureContacts       Feature = "CONTACTS"
	FeatureSchedule       Feature = "SCHEDULE"
	FeatureImages         Feature = "IMAGES"
)

type RSVPSettings struct {
	Enabled           bool    `dynamodbav:"enabled" json:"enabled"`
	AllowMaybe        bool    `dynamodbav:"allowMaybe" json:"allowMaybe"`
	Deadline          *string `dynamodbav:"deadline,omitempty" json:"deadline,omitempty"`
	WelcomeMessage    *string `dynamodbav:"welcomeMessage,omitempty" json:"welcomeMessage,omitempty"`
	MaxGuestsPerParty int     `dynamodbav:"maxGuestsPerParty" json:"maxGuestsPerParty"`
}

func DefaultRSVP() RSVPSettings {
	return RSVPSettings{Enabled: true, AllowMaybe: true, MaxGuestsPerParty: 10}
}

type RSVPPatch struct {
	Enabled           Field[bool]   `json:"enabled"`
	AllowMaybe        Field[bool]   `json:"allowMaybe"`
	Deadline          Field[string] `json:"deadline"`
	WelcomeMessage    Field[string] `json:"welcomeMessage"`
	MaxGuestsPerParty Field[int]    `json:"maxGuestsPerParty"`
}

func (p RSVPPatch) Merge(e RSVPSettings, elevated bool) RSVPSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.AllowMaybe = p.AllowMaybe.Merge(e.AllowMaybe)
	e.Deadline = MergeOpt(e.Deadline, p.Deadline)
	e.WelcomeMessage = MergeOpt(e.WelcomeMessage, p.WelcomeMessage)
	e.MaxGuestsPerParty = p.MaxGuestsPerParty.MergeRestricted(e.MaxGuestsPerParty, elevated)
	return e
}

type GiftsSettings struct {
	Enabled         bool    `dynamodbav:"enabled" json:"enabled"`
	ThankYouMessage *string `dynamodbav:"thankYouMessage,omitempty" json:"thankYouMessage,omitempty"`
	MaxItems        int     `dynamodbav:"maxItems" json:"maxItems"`
}

func DefaultGifts() GiftsSettings {
	return GiftsSettings{Enabled: true, MaxItems: 50}
}

type GiftsPatch struct {
	Enabled         Field[bool]   `json:"enabled"`
	ThankYouMessage Field[string] `json:"thankYouMessage"`
	MaxItems        Field[int]    `json:"maxItems"`
}

func (p GiftsPatch) Merge(e GiftsSettings, elevated bool) GiftsSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.ThankYouMessage = MergeOpt(e.ThankYouMessage, p.ThankYouMessage)
	e.MaxItems = p.MaxItems.MergeRestricted(e.MaxItems, elevated)
	return e
}

type MusicSettings struct {
	Enabled               bool `dynamodbav:"enabled" json:"enabled"`
	AllowGuestSuggestions bool `dynamodbav:"allowGuestSuggestions" json:"allowGuestSuggestions"`
	MaxTracks             int  `dynamodbav:"maxTracks" json:"maxTracks"`
}

func DefaultMusic() MusicSettings {
	return MusicSettings{Enabled: true, MaxTracks: 100}
}

type MusicPatch struct {
	Enabled               Field[bool] `json:"enabled"`
	AllowGuestSuggestions Field[bool] `json:"allowGuestSuggestions"`
	MaxTracks             Field[int]  `json:"maxTracks"`
}

func (p MusicPatch) Merge(e MusicSettings, elevated bool) MusicSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.AllowGuestSuggestions = p.AllowGuestSuggestions.Merge(e.AllowGuestSuggestions)
	e.MaxTracks = p.MaxTracks.MergeRestricted(e.MaxTracks, elevated)
	return e
}

type HeroBackgroundSettings struct {
	Enabled        bool     `dynamodbav:"enabled" json:"enabled"`
	MediaKey       *string  `dynamodbav:"mediaKey,omitempty" json:"mediaKey,omitempty"`
	MediaType      *string  `dynamodbav:"mediaType,omitempty" json:"mediaType,omitempty"`
	MaxFileSizeMB  int      `dynamodbav:"maxFileSizeMb" json:"maxFileSizeMb"`
	AllowedFormats []string `dynamodbav:"allowedFormats,omitempty" json:"allowedFormats,omitempty"`
}

func DefaultHeroBackground() HeroBackgroundSettings {
	return HeroBackgroundSettings{
		Enabled:        true,
		MaxFileSizeMB:  25,
		AllowedFormats: []string{"jpg", "jpeg", "png", "webp", "mp4"},
	}
}

type HeroBackgroundPatch struct {
	Enabled        Field[bool]     `json:"enabled"`
	MediaKey       Field[string]   `json:"mediaKey"`
	MediaType      Field[string]   `json:"mediaType"`
	MaxFileSizeMB  Field[int]      `json:"maxFileSizeMb"`
	AllowedFormats Field[[]string] `json:"allowedFormats"`
}

func (p HeroBackgroundPatch) Merge(e HeroBackgroundSettings, elevated bool) HeroBackgroundSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.MediaKey = MergeOpt(e.MediaKey, p.MediaKey)
	e.MediaType = MergeOpt(e.MediaType, p.MediaType)
	e.MaxFileSizeMB = p.MaxFileSizeMB.MergeRestricted(e.MaxFileSizeMB, elevated)
	e.AllowedFormats = p.AllowedFormats.MergeRestricted(e.AllowedFormats, elevated)
	return e
}

// QRChannel is one link on the QR hub page (whatsapp, spotify, maps...).
type QRChannel struct {
	Enabled bool    `dynamodbav:"enabled" json:"enabled"`
	Label   *string `dynamodbav:"label,omitempty" json:"label,omitempty"`
	URL     *string `dynamodbav:"url,omitempty" json:"url,omitempty"`
}

type QRCodeHubSettings struct {
	Enabled  bool                 `dynamodbav:"enabled" json:"enabled"`
	Channels map[string]QRChannel `dynamodbav:"channels,omitempty" json:"channels,omitempty"`
}

func DefaultQRCodeHub() QRCodeHubSettings {
	return QRCodeHubSettings{Enabled: false}
}

type QRChannelPatch struct {
	Enabled Field[bool]   `json:"enabled"`
	Label   Field[string] `json:"label"`
	URL     Field[string] `json:"url"`
}

// QRCodeHubPatch merges per channel: a null channel entry removes the
// channel, a present entry is merged field by field into the existing
// one (zero-valued when new).
type QRCodeHubPatch struct {
	Enabled  Field[bool]                `json:"enabled"`
	Channels map[string]*QRChannelPatch `json:"channels"`
}

func (p QRCodeHubPatch) Merge(e QRCodeHubSettings, elevated bool) QRCodeHubSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	if len(p.Channels) == 0 {
		return e
	}
	channels := make(map[string]QRChannel, len(e.Channels))
	maps.Copy(channels, e.Channels)
	for name, cp := range p.Channels {
		if cp == nil {
			delete(channels, name)
			continue
		}
		ch := channels[name]
		ch.Enabled = cp.Enabled.Merge(ch.Enabled)
		ch.Label = MergeOpt(ch.Label, cp.Label)
		ch.URL = MergeOpt(ch.URL, cp.URL)
		channels[name] = ch
	}
	e.Channels = channels
	return e
}

type ParkingSettings struct {
	Enabled      bool    `dynamodbav:"enabled" json:"enabled"`
	Instructions *string `dynamodbav:"instructions,omitempty" json:"instructions,omitempty"`
	MapURL       *string `dynamodbav:"mapUrl,omitempty" json:"mapUrl,omitempty"`
	MaxImages    int     `dynamodbav:"maxImages" json:"maxImages"`
}

func DefaultParking() ParkingSettings {
	return ParkingSettings{Enabled: false, MaxImages: 10}
}

type ParkingPatch struct {
	Enabled      Field[bool]   `json:"enabled"`
	Instructions Field[string] `json:"instructions"`
	MapURL       Field[string] `json:"mapUrl"`
	MaxImages    Field[int]    `json:"maxImages"`
}

func (p ParkingPatch) Merge(e ParkingSettings, elevated bool) ParkingSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.Instructions = MergeOpt(e.Instructions, p.Instructions)
	e.MapURL = MergeOpt(e.MapURL, p.MapURL)
	e.MaxImages = p.MaxImages.MergeRestricted(e.MaxImages, elevated)
	return e
}

type ContactsSettings struct {
	Enabled bool    `dynamodbav:"enabled" json:"enabled"`
	Email   *string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone   *string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

func DefaultContacts() ContactsSettings {
	return ContactsSettings{Enabled: true}
}

type ContactsPatch struct {
	Enabled Field[bool]   `json:"enabled"`
	Email   Field[string] `json:"email"`
	Phone   Field[string] `json:"phone"`
}

func (p ContactsPatch) Merge(e ContactsSettings, _ bool) ContactsSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.Email = MergeOpt(e.Email, p.Email)
	e.Phone = MergeOpt(e.Phone, p.Phone)
	return e
}

type ScheduleSettings struct {
	Enabled  bool    `dynamodbav:"enabled" json:"enabled"`
	Timezone *string `dynamodbav:"timezone,omitempty" json:"timezone,omitempty"`
}

func DefaultSchedule() ScheduleSettings {
	return ScheduleSettings{Enabled: true}
}

type SchedulePatch struct {
	Enabled  Field[bool]   `json:"enabled"`
	Timezone Field[string] `json:"timezone"`
}

func (p SchedulePatch) Merge(e ScheduleSettings, _ bool) ScheduleSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.Timezone = MergeOpt(e.Timezone, p.Timezone)
	return e
}

type ImagesSettings struct {
	Enabled        bool     `dynamodbav:"enabled" json:"enabled"`
	MaxItems       int      `dynamodbav:"maxItems" json:"maxItems"`
	MaxFileSizeMB  int      `dynamodbav:"maxFileSizeMb" json:"maxFileSizeMb"`
	AllowedFormats []string `dynamodbav:"allowedFormats,omitempty" json:"allowedFormats,omitempty"`
}

func DefaultImages() ImagesSettings {
	return ImagesSettings{
		Enabled:        true,
		MaxItems:       200,
		MaxFileSizeMB:  15,
		AllowedFormats: []string{"jpg", "jpeg", "png", "webp"},
	}
}

type ImagesPatch struct {
	Enabled        Field[bool]     `json:"enabled"`
	MaxItems       Field[int]      `json:"maxItems"`
	MaxFileSizeMB  Field[int]      `json:"maxFileSizeMb"`
	AllowedFormats Field[[]string] `json:"allowedFormats"`
}

func (p ImagesPatch) Merge(e ImagesSettings, elevated bool) ImagesSettings {
	e.Enabled = p.Enabled.Merge(e.Enabled)
	e.MaxItems = p.MaxItems.MergeRestricted(e.MaxItems, elevated)
	e.MaxFileSizeMB = p.MaxFileSizeMB.MergeRestricted(e.MaxFileSizeMB, elevated)
	e.AllowedFormats = p.AllowedFormats.MergeRestricted(e.AllowedFormats, elevated)
	return e
}
